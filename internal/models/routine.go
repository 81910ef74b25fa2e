package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Category string

const (
	CategoryWork     Category = "work"
	CategoryStudy    Category = "study"
	CategoryPersonal Category = "personal"
	CategoryHealth   Category = "health"
	CategoryOther    Category = "other"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Routine is a recurring activity: a weekday pattern plus a time window.
type Routine struct {
	ID          string         `json:"id" validate:"required"`
	UserID      string         `json:"user_id" validate:"required"`
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description,omitempty"`
	Days        []time.Weekday `json:"days" validate:"required,min=1,max=7,unique,dive,weekday"`
	StartTime   string         `json:"start_time" validate:"required,hhmm"`          // HH:MM format
	EndTime     string         `json:"end_time,omitempty" validate:"omitempty,hhmm"` // HH:MM format
	Category    Category       `json:"category" validate:"required,oneof=work study personal health other"`
	Priority    Priority       `json:"priority" validate:"required,oneof=low medium high"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// HasDay reports whether the routine's weekday set contains wd.
func (r *Routine) HasDay(wd time.Weekday) bool {
	for _, d := range r.Days {
		if d == wd {
			return true
		}
	}
	return false
}

// NormalizeDays sorts and deduplicates the weekday set in place.
func (r *Routine) NormalizeDays() {
	seen := make(map[time.Weekday]bool, len(r.Days))
	days := r.Days[:0]
	for _, d := range r.Days {
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	r.Days = days
}

// FormatDays returns the weekday set as "Mon, Wed, Fri".
func (r *Routine) FormatDays() string {
	if len(r.Days) == 7 {
		return "Every day"
	}
	names := make([]string, len(r.Days))
	for i, d := range r.Days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ", ")
}

// Window returns "07:00-08:00", or just the start time when there is no end.
func (r *Routine) Window() string {
	if r.EndTime == "" {
		return r.StartTime
	}
	return fmt.Sprintf("%s-%s", r.StartTime, r.EndTime)
}

// ParseCategory accepts the English names plus the Portuguese labels used by
// older exports ("saude", "trabalho", ...).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "work", "trabalho":
		return CategoryWork, nil
	case "study", "estudo", "estudos":
		return CategoryStudy, nil
	case "personal", "pessoal":
		return CategoryPersonal, nil
	case "health", "saude", "saúde":
		return CategoryHealth, nil
	case "other", "outro", "outros", "":
		return CategoryOther, nil
	default:
		return "", fmt.Errorf("invalid category: %s", s)
	}
}

// ParsePriority accepts low/medium/high and the Portuguese equivalents.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "baixa":
		return PriorityLow, nil
	case "medium", "media", "média", "":
		return PriorityMedium, nil
	case "high", "alta":
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("invalid priority: %s", s)
	}
}
