package utils

import (
	"testing"
	"time"

	"github.com/julianstephens/routined/internal/models"
)

// Exhaustively checks every weekday subset against every day of one week.
func TestIsOccurrence_AllWeekdaySets(t *testing.T) {
	monday := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	for mask := 0; mask < 1<<7; mask++ {
		var days []time.Weekday
		for d := 0; d < 7; d++ {
			if mask&(1<<d) != 0 {
				days = append(days, time.Weekday(d))
			}
		}
		for _, active := range []bool{true, false} {
			r := models.Routine{Days: days, Active: active}
			for offset := 0; offset < 7; offset++ {
				date := monday.AddDate(0, 0, offset)
				want := active && mask&(1<<int(date.Weekday())) != 0
				if got := IsOccurrence(r, date); got != want {
					t.Fatalf("IsOccurrence(days=%v active=%v, %s) = %v, want %v",
						days, active, date.Weekday(), got, want)
				}
			}
		}
	}
}

func TestIsDue(t *testing.T) {
	exec := models.Execution{Date: "2026-01-05", ScheduledTime: "07:00", EndTime: "08:00", Status: models.StatusPending}

	tests := []struct {
		name   string
		status models.ExecutionStatus
		now    time.Time
		want   bool
	}{
		{name: "before start", status: models.StatusPending, now: time.Date(2026, 1, 5, 6, 59, 0, 0, time.UTC), want: false},
		{name: "exactly at start", status: models.StatusPending, now: time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC), want: true},
		{name: "after start", status: models.StatusPending, now: time.Date(2026, 1, 5, 7, 30, 0, 0, time.UTC), want: true},
		{name: "already started", status: models.StatusInProgress, now: time.Date(2026, 1, 5, 7, 30, 0, 0, time.UTC), want: false},
		{name: "previous day", status: models.StatusPending, now: time.Date(2026, 1, 4, 23, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := exec
			e.Status = tt.status
			if got := IsDue(e, tt.now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsOverdueForClosure(t *testing.T) {
	base := models.Execution{Date: "2026-01-05", ScheduledTime: "07:00", EndTime: "08:00"}

	tests := []struct {
		name   string
		status models.ExecutionStatus
		end    string
		now    time.Time
		want   bool
	}{
		{name: "pending before end", status: models.StatusPending, end: "08:00", now: time.Date(2026, 1, 5, 7, 59, 0, 0, time.UTC), want: false},
		{name: "pending at end", status: models.StatusPending, end: "08:00", now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), want: true},
		{name: "in progress past end", status: models.StatusInProgress, end: "08:00", now: time.Date(2026, 1, 5, 8, 5, 0, 0, time.UTC), want: true},
		{name: "done past end", status: models.StatusDone, end: "08:00", now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), want: false},
		{name: "not done past end", status: models.StatusNotDone, end: "08:00", now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), want: false},
		{name: "no end uses start", status: models.StatusPending, end: "", now: time.Date(2026, 1, 5, 7, 0, 1, 0, time.UTC), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			e.Status = tt.status
			e.EndTime = tt.end
			if got := IsOverdueForClosure(e, tt.now); got != tt.want {
				t.Errorf("IsOverdueForClosure() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Without an end time, closure is due exactly when the start has passed.
func TestIsOverdueForClosure_NoEndMatchesStart(t *testing.T) {
	e := models.Execution{Date: "2026-01-05", ScheduledTime: "07:00", Status: models.StatusPending}
	start := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)

	for _, delta := range []time.Duration{-time.Hour, -time.Second, 0, time.Second, 3 * time.Hour} {
		now := start.Add(delta)
		want := !now.Before(start)
		if got := IsOverdueForClosure(e, now); got != want {
			t.Errorf("delta %v: IsOverdueForClosure() = %v, want %v", delta, got, want)
		}
	}
}

func TestIsDue_UsesNowLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	e := models.Execution{Date: "2026-01-05", ScheduledTime: "07:00", Status: models.StatusPending}

	// 09:30 UTC is 06:30 in Sao Paulo.
	now := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC).In(loc)
	if IsDue(e, now) {
		t.Error("routine should not be due before its local start time")
	}
}

func TestOccurrencesOn(t *testing.T) {
	routines := []models.Routine{
		{ID: "gym", Days: []time.Weekday{time.Monday, time.Wednesday, time.Friday}, Active: true},
		{ID: "study", Days: []time.Weekday{time.Tuesday}, Active: true},
		{ID: "paused", Days: []time.Weekday{time.Monday}, Active: false},
	}
	got := OccurrencesOn(routines, time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC))
	if len(got) != 1 || got[0].ID != "gym" {
		t.Errorf("OccurrencesOn(Monday) = %v, want [gym]", got)
	}
}
