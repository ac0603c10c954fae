package api

import (
	"context"

	"task-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	AppendTask(ctx context.Context, task domain.Task) error
}

// Deduper prevents processing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, key string) (bool, error)
	// Remove deletes a previously added key, used when persisting fails.
	Remove(ctx context.Context, key string) error
}

// Notifier is told about tasks after they have been persisted.
type Notifier interface {
	TaskCreated(ctx context.Context, task domain.Task) error
}
