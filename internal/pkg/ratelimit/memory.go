package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	index   int64
	count   int
	expires time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. It is only correct
// for a single instance and exists for tests and local development.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := l.now()
	idx := windowIndex(now, window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.index != idx {
		l.sweep(now)
		w = &memoryWindow{index: idx, expires: time.UnixMilli((idx + 1) * window.Milliseconds())}
		l.windows[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

// sweep drops elapsed windows; callers hold the lock.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.expires) {
			delete(l.windows, k)
		}
	}
}
