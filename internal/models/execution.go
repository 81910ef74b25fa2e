package models

import (
	"fmt"
	"time"

	rerrors "github.com/julianstephens/routined/internal/errors"
)

type ExecutionStatus string

const (
	StatusPending    ExecutionStatus = "pending"
	StatusInProgress ExecutionStatus = "in_progress"
	StatusDone       ExecutionStatus = "done"
	StatusNotDone    ExecutionStatus = "not_done"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusNotDone
}

// IsOpen reports whether an execution in status s still awaits closure.
func (s ExecutionStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

// Execution is one dated instance of a Routine.
type Execution struct {
	ID            string          `json:"id"`
	RoutineID     string          `json:"routine_id"`
	UserID        string          `json:"user_id"`
	Date          string          `json:"date"`               // YYYY-MM-DD format
	ScheduledTime string          `json:"scheduled_time"`     // HH:MM, copied from the routine
	EndTime       string          `json:"end_time,omitempty"` // HH:MM, copied from the routine
	Status        ExecutionStatus `json:"status"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusPending:    {StatusInProgress, StatusDone, StatusNotDone},
	StatusInProgress: {StatusDone, StatusNotDone},
}

// CanTransition reports whether the status machine allows e -> to.
func (e *Execution) CanTransition(to ExecutionStatus) bool {
	for _, s := range allowedTransitions[e.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the execution to the given status, stamping StartedAt when
// entering in_progress and CompletedAt when entering done. not_done leaves
// CompletedAt untouched.
func (e *Execution) Transition(to ExecutionStatus, at time.Time) error {
	if !e.CanTransition(to) {
		return fmt.Errorf("execution %s: %s -> %s: %w", e.ID, e.Status, to, rerrors.ErrInvalidTransition)
	}
	switch to {
	case StatusInProgress:
		e.StartedAt = &at
	case StatusDone:
		e.CompletedAt = &at
	}
	e.Status = to
	return nil
}

// EffectiveEnd returns the end time used for closure checks. Without an
// explicit end time the start time doubles as the end.
func (e *Execution) EffectiveEnd() string {
	if e.EndTime != "" {
		return e.EndTime
	}
	return e.ScheduledTime
}

// NewExecution builds the pending instance of r for date (YYYY-MM-DD).
func NewExecution(id string, r Routine, date string, now time.Time) Execution {
	return Execution{
		ID:            id,
		RoutineID:     r.ID,
		UserID:        r.UserID,
		Date:          date,
		ScheduledTime: r.StartTime,
		EndTime:       r.EndTime,
		Status:        StatusPending,
		CreatedAt:     now,
	}
}
