package domain

import "time"

// IDPrefix is prepended to every generated task identifier.
const IDPrefix = "TASK-"

// CreatedAtLayout matches the ISO-8601 form with millisecond precision in UTC.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a task.
type Status string

const StatusPending Status = "pending"

// Task represents a single persisted work item.
type Task struct {
	ID          string   `json:"taskId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	CreatedAt   string   `json:"createdAt"`
}

// NewTask builds a pending task created at now.
func NewTask(id, title, description string, priority Priority, now time.Time) Task {
	return Task{
		ID:          id,
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now.UTC().Format(CreatedAtLayout),
	}
}
