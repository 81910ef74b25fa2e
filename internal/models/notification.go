package models

import "time"

const (
	NotificationTypeStart    = "start"
	NotificationTypeEnd      = "end"
	NotificationTypeReminder = "reminder"
)

// NotificationRequest is a persisted request for a future alert, owned by the
// background scheduler until it is shown or canceled.
type NotificationRequest struct {
	ID            string    `json:"id" validate:"required"`
	Title         string    `json:"title" validate:"required"`
	Body          string    `json:"body"`
	ScheduledTime time.Time `json:"scheduledTime" validate:"required"`
	RoutineID     string    `json:"routineId,omitempty"`
	ExecutionID   string    `json:"executionId,omitempty"`
	Type          string    `json:"type,omitempty"`
}

// Tag is stable per execution and type so the OS collapses repeats.
func (r NotificationRequest) Tag() string {
	if r.RoutineID == "" && r.ExecutionID == "" {
		return r.ID
	}
	return r.RoutineID + "-" + r.ExecutionID + "-" + r.Type
}

// IsDue reports whether the request should fire at now.
func (r NotificationRequest) IsDue(now time.Time) bool {
	return !r.ScheduledTime.After(now)
}

// RequestID derives the deterministic request id for an execution prompt.
func RequestID(executionID, kind string) string {
	return executionID + ":" + kind
}

// NotificationAction is a button offered on a shown notification.
type NotificationAction struct {
	Action string `json:"action" validate:"required"`
	Title  string `json:"title" validate:"required"`
}

// Notification is what gets handed to a presenter.
type Notification struct {
	Title   string               `json:"title" validate:"required"`
	Body    string               `json:"body"`
	Tag     string               `json:"tag,omitempty"`
	Actions []NotificationAction `json:"actions,omitempty" validate:"dive"`
	Data    map[string]string    `json:"data,omitempty"`
}

// Notification data keys
const (
	DataRoutineID   = "routineId"
	DataExecutionID = "executionId"
	DataType        = "type"
	DataURL         = "url"
)
