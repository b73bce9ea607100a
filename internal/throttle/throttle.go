// Package throttle limits repeated attempts per key over a sliding window. It
// backs login throttling; every attempt counts, allowed or not.
package throttle

import (
	"context"
	"time"
)

// Result is the outcome of one attempt.
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the oldest attempt leaves the window. Zero
	// when allowed.
	RetryAfter time.Duration
}

// Limiter records attempts and reports whether the caller is over the limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	Reset(ctx context.Context, key string) error
}

func result(count, limit int, oldest time.Time, window time.Duration, now time.Time) Result {
	if count <= limit {
		return Result{Allowed: true, Remaining: limit - count}
	}
	retry := oldest.Add(window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return Result{Allowed: false, RetryAfter: retry}
}
