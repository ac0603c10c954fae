package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"task-api/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheLoadMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	expected := sampleTasks()

	var calls int
	cache := NewCache(&stubBackend{
		loadFn: func(context.Context) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		tasks, err := cache.Load(ctx)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if !reflect.DeepEqual(tasks, expected) {
			t.Fatalf("unexpected tasks: %#v", tasks)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(tasksCacheKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestCacheSaveEvicts(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	var saved []domain.Task
	cache := NewCache(&stubBackend{
		loadFn: func(context.Context) ([]domain.Task, error) { return saved, nil },
		saveFn: func(_ context.Context, tasks []domain.Task) error {
			saved = tasks
			return nil
		},
	}, client, time.Minute)

	if _, err := cache.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !mr.Exists(tasksCacheKey) {
		t.Fatalf("expected cache to be populated")
	}
	if err := cache.Save(ctx, sampleTasks()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatalf("expected cache entry to be evicted after save")
	}

	tasks, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected fresh tasks after eviction, got %#v", tasks)
	}
}

func TestCacheSaveFailureKeepsEntry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	if err := mr.Set(tasksCacheKey, "[]"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("write failed")
	cache := NewCache(&stubBackend{
		saveFn: func(context.Context, []domain.Task) error { return boom },
	}, client, time.Minute)

	if err := cache.Save(ctx, sampleTasks()); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if !mr.Exists(tasksCacheKey) {
		t.Fatalf("expected cache entry to remain")
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := newTestRedis(t)
	if err := mr.Set(tasksCacheKey, "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cache := NewCache(&stubBackend{
		loadFn: func(context.Context) ([]domain.Task, error) { return sampleTasks(), nil },
	}, client, 0)

	tasks, err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected backend tasks, got %#v", tasks)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatalf("expected corrupt entry to be removed and not repopulated with zero TTL")
	}
}

func TestCacheMissingDocumentCachedAsEmpty(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	var calls int
	cache := NewCache(&stubBackend{
		loadFn: func(context.Context) ([]domain.Task, error) {
			calls++
			return nil, ErrNotFound
		},
	}, client, time.Minute)

	if _, err := cache.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on first load, got %v", err)
	}
	tasks, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(tasks) != 0 || calls != 1 {
		t.Fatalf("expected cached empty collection, got %#v after %d calls", tasks, calls)
	}
	if got, _ := mr.Get(tasksCacheKey); got != "[]" {
		t.Fatalf("unexpected cached payload: %q", got)
	}
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	cache := NewCache(&stubBackend{
		loadFn: func(context.Context) ([]domain.Task, error) { return sampleTasks(), nil },
	}, nil, time.Minute)

	tasks, err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
}

// pausingBackend blocks the first armed Load after it has read the base, so a
// reader can be held with a stale snapshot in hand.
type pausingBackend struct {
	Backend
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (p *pausingBackend) Load(ctx context.Context) ([]domain.Task, error) {
	tasks, err := p.Backend.Load(ctx)
	if p.armed.CompareAndSwap(true, false) {
		close(p.reached)
		<-p.release
	}
	return tasks, err
}

func TestCacheListDuringAppendDoesNotLoseTasks(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	file := NewFileBackend(filepath.Join(t.TempDir(), "tasks.json"))
	now := time.Unix(0, 0)
	if err := file.Save(ctx, []domain.Task{domain.NewTask("TASK-1", "one", "", domain.PriorityLow, now)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gate := &pausingBackend{Backend: file, reached: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(NewCache(gate, client, time.Minute), true, nil)

	gate.armed.Store(true)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := store.ListTasks(ctx); err != nil {
			t.Errorf("list: %v", err)
		}
	}()
	<-gate.reached

	go func() {
		defer wg.Done()
		if err := store.AppendTask(ctx, domain.NewTask("TASK-2", "two", "", domain.PriorityLow, now)); err != nil {
			t.Errorf("append TASK-2: %v", err)
		}
	}()
	// Give the append a chance to run ahead of the paused list.
	time.Sleep(50 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	if err := store.AppendTask(ctx, domain.NewTask("TASK-3", "three", "", domain.PriorityLow, now)); err != nil {
		t.Fatalf("append TASK-3: %v", err)
	}

	persisted, err := file.Load(ctx)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	var ids []string
	for _, task := range persisted {
		ids = append(ids, task.ID)
	}
	if !reflect.DeepEqual(ids, []string{"TASK-1", "TASK-2", "TASK-3"}) {
		t.Fatalf("expected all appends to survive, got %v", ids)
	}
}
