package utils

import (
	"time"

	"github.com/julianstephens/routined/internal/models"
)

// IsOccurrence reports whether date is a scheduled day for the routine: the
// weekday must be in the routine's set and the routine must be active.
func IsOccurrence(r models.Routine, date time.Time) bool {
	return r.Active && r.HasDay(date.Weekday())
}

// ScheduledAt returns the absolute start of the execution in loc.
func ScheduledAt(e models.Execution, loc *time.Location) (time.Time, error) {
	return CombineDateAndTime(e.Date, e.ScheduledTime, loc)
}

// EffectiveEndAt returns the absolute effective end of the execution in loc.
// Without an explicit end the start time is used.
func EffectiveEndAt(e models.Execution, loc *time.Location) (time.Time, error) {
	return CombineDateAndTime(e.Date, e.EffectiveEnd(), loc)
}

// IsDue reports whether a pending execution's start has arrived. now's
// location defines the local calendar.
func IsDue(e models.Execution, now time.Time) bool {
	if e.Status != models.StatusPending {
		return false
	}
	start, err := ScheduledAt(e, now.Location())
	if err != nil {
		return false
	}
	return !now.Before(start)
}

// IsOverdueForClosure reports whether an unresolved execution's effective end
// has passed.
func IsOverdueForClosure(e models.Execution, now time.Time) bool {
	if !e.Status.IsOpen() {
		return false
	}
	end, err := EffectiveEndAt(e, now.Location())
	if err != nil {
		return false
	}
	return !now.Before(end)
}

// OccurrencesOn filters routines down to those scheduled on date.
func OccurrencesOn(routines []models.Routine, date time.Time) []models.Routine {
	var out []models.Routine
	for _, r := range routines {
		if IsOccurrence(r, date) {
			out = append(out, r)
		}
	}
	return out
}
