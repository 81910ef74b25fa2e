package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictDuplicateTitle     ConflictType = "duplicate_title"
	ConflictOverlappingWindows ConflictType = "overlapping_windows"
)

// Conflict represents a detected conflict between routines
type Conflict struct {
	Type        ConflictType
	Description string
	Days        []time.Weekday
	Items       []string // Routine titles involved
	RoutineIDs  []string
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Validator checks a set of routines for conflicts. Conflicts are warnings:
// overlapping routines are allowed and end up queued one after the other.
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateRoutines reports duplicate titles and time windows that overlap on a
// shared weekday. Inactive routines are ignored.
func (v *Validator) ValidateRoutines(routines []models.Routine) ValidationResult {
	var result ValidationResult

	active := make([]models.Routine, 0, len(routines))
	for _, r := range routines {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].StartTime < active[j].StartTime })

	byTitle := make(map[string][]models.Routine)
	var titles []string
	for _, r := range active {
		key := strings.ToLower(strings.TrimSpace(r.Title))
		if _, seen := byTitle[key]; !seen {
			titles = append(titles, key)
		}
		byTitle[key] = append(byTitle[key], r)
	}
	for _, k := range titles {
		group := byTitle[k]
		if len(group) < 2 {
			continue
		}
		ids := make([]string, len(group))
		for i, r := range group {
			ids[i] = r.ID
		}
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictDuplicateTitle,
			Description: fmt.Sprintf("%d active routines are named %q", len(group), group[0].Title),
			Items:       []string{group[0].Title},
			RoutineIDs:  ids,
		})
	}

	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			shared := sharedDays(a, b)
			if len(shared) == 0 || !windowsOverlap(a, b) {
				continue
			}
			result.Conflicts = append(result.Conflicts, Conflict{
				Type: ConflictOverlappingWindows,
				Description: fmt.Sprintf("%q (%s) overlaps %q (%s) on %s",
					a.Title, a.Window(), b.Title, b.Window(), formatDays(shared)),
				Days:       shared,
				Items:      []string{a.Title, b.Title},
				RoutineIDs: []string{a.ID, b.ID},
			})
		}
	}

	return result
}

func sharedDays(a, b models.Routine) []time.Weekday {
	var out []time.Weekday
	for _, d := range a.Days {
		if b.HasDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// windowsOverlap compares half-open [start, end) windows. A routine without an
// end is a single instant, which overlaps a window containing it or an
// identical instant.
func windowsOverlap(a, b models.Routine) bool {
	aStart, aEnd, ok := window(a)
	if !ok {
		return false
	}
	bStart, bEnd, ok := window(b)
	if !ok {
		return false
	}
	switch {
	case aStart == aEnd && bStart == bEnd:
		return aStart == bStart
	case aStart == aEnd:
		return bStart <= aStart && aStart < bEnd
	case bStart == bEnd:
		return aStart <= bStart && bStart < aEnd
	default:
		return aStart < bEnd && bStart < aEnd
	}
}

func window(r models.Routine) (int, int, bool) {
	start, err := utils.ParseTimeToMinutes(r.StartTime)
	if err != nil {
		return 0, 0, false
	}
	end := start
	if r.EndTime != "" {
		end, err = utils.ParseTimeToMinutes(r.EndTime)
		if err != nil {
			return 0, 0, false
		}
	}
	return start, end, true
}

func formatDays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ", ")
}
