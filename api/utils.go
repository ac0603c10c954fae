package api

import (
	"strconv"
	"sync/atomic"
	"time"

	"task-api/domain"
)

var (
	lastMillis int64
)

// nextMillis returns the current Unix time in milliseconds, bumped past the
// previously returned value so that no two calls in a process collide.
func nextMillis() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastMillis)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastMillis, last, now) {
			return now
		}
	}
}

func newTaskID() string {
	return domain.IDPrefix + strconv.FormatInt(nextMillis(), 10)
}
