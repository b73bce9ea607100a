package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps a sliding window of attempt times per key.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string][]time.Time
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewMemoryLimiter allows limit attempts per window for each key.
func NewMemoryLimiter(limit int, window time.Duration, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	attempts := l.windows[key]
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	attempts = append(attempts[i:], now)
	l.windows[key] = attempts

	return result(len(attempts), l.limit, attempts[0], l.window, now), nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}
