package api

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"task-api/domain"
)

func TestNextMillisMonotonic(t *testing.T) {
	t.Cleanup(func() {
		atomic.StoreInt64(&lastMillis, 0)
	})
	future := time.Now().Add(time.Second).UnixMilli()
	atomic.StoreInt64(&lastMillis, future)

	first := nextMillis()
	second := nextMillis()
	if first != future+1 || second != future+2 {
		t.Fatalf("expected ids to step past the last value, got %d then %d", first, second)
	}
}

func TestNewTaskIDUniqueUnderConcurrency(t *testing.T) {
	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- newTaskID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, n)
	for id := range ids {
		if !strings.HasPrefix(id, domain.IDPrefix) {
			t.Fatalf("id %q missing prefix", id)
		}
		if _, err := strconv.ParseInt(strings.TrimPrefix(id, domain.IDPrefix), 10, 64); err != nil {
			t.Fatalf("id %q has non-numeric suffix", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
