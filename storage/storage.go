package storage

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"task-api/domain"
)

// Backend persists the whole task collection as one unit.
type Backend interface {
	Load(ctx context.Context) ([]domain.Task, error)
	Save(ctx context.Context, tasks []domain.Task) error
}

// Store is the record store used by the HTTP layer. Writes are serialized
// so that concurrent creates within one process never overwrite each other.
// Reads hold the shared lock for their whole backend call, so a caching
// backend can never refill itself with a collection older than the last save.
type Store struct {
	backend Backend
	strict  bool
	logger  *log.Logger

	mu sync.RWMutex
}

// NewStore wraps backend. When strict is false, unreadable or malformed
// documents load as an empty collection and are only reported in the log.
func NewStore(backend Backend, strict bool, logger *log.Logger) *Store {
	if backend == nil {
		panic("storage.NewStore: backend is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{backend: backend, strict: strict, logger: logger}
}

// Load returns the persisted tasks in insertion order.
func (s *Store) Load(ctx context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.backend.Load(ctx)
	if err == nil {
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return tasks, nil
	}
	if errors.Is(err, ErrNotFound) {
		return []domain.Task{}, nil
	}

	serr := readError(err)
	if s.strict {
		return nil, serr
	}
	s.logger.WithFields(log.Fields{
		"kind":  serr.Kind.String(),
		"error": err.Error(),
	}).Warn("task document unusable, treating as empty")
	return []domain.Task{}, nil
}

// Save replaces the persisted collection with tasks.
func (s *Store) Save(ctx context.Context, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, tasks)
}

func (s *Store) saveLocked(ctx context.Context, tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	if err := s.backend.Save(ctx, tasks); err != nil {
		return &Error{Kind: KindWrite, Err: err}
	}
	return nil
}

// ListTasks returns every stored task.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.Load(ctx)
}

// AppendTask loads the collection, appends task and saves the result.
func (s *Store) AppendTask(ctx context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	tasks = append(tasks, task)
	return s.saveLocked(ctx, tasks)
}
