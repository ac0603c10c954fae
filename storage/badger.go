package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"task-api/domain"
)

const badgerTaskPrefix = "task:"

// BadgerConfig holds the options used to open the embedded database.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives badger's internal logs. Nil disables them.
	Logger *log.Logger
}

// BadgerBackend stores each task under its own key, ordered by position.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// Close releases the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func badgerTaskKey(pos int) []byte {
	return []byte(fmt.Sprintf("%s%020d", badgerTaskPrefix, pos))
}

func (b *BadgerBackend) Load(_ context.Context) ([]domain.Task, error) {
	tasks := []domain.Task{}
	prefix := []byte(badgerTaskPrefix)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var task domain.Task
			err := item.Value(func(val []byte) error {
				return sonic.Unmarshal(val, &task)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w: %v", item.Key(), ErrCorrupt, err)
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Save replaces every task key inside a single transaction.
func (b *BadgerBackend) Save(_ context.Context, tasks []domain.Task) error {
	prefix := []byte(badgerTaskPrefix)
	return b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		for i, task := range tasks {
			data, err := sonic.Marshal(task)
			if err != nil {
				return fmt.Errorf("encode task %s: %w", task.ID, err)
			}
			if err := txn.Set(badgerTaskKey(i), data); err != nil {
				return fmt.Errorf("set task %s: %w", task.ID, err)
			}
		}
		return nil
	})
}
