package models

import "time"

type QueueType string

const (
	QueueStart QueueType = "start"
	QueueEnd   QueueType = "end"
)

// QueueItem is a prompt waiting for the user's response.
type QueueItem struct {
	ExecutionID string    `json:"execution_id"`
	RoutineID   string    `json:"routine_id"`
	Title       string    `json:"title"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time,omitempty"`
	Category    Category  `json:"category"`
	QueueType   QueueType `json:"queue_type"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Key identifies an item for duplicate detection.
func (q QueueItem) Key() string {
	return q.ExecutionID + "/" + string(q.QueueType)
}
