package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = time.Second
)

// Retrier runs a function a bounded number of times inside the caller's
// request, sleeping BaseDelay * 2^(attempt-1) between attempts.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Run invokes fn until it succeeds, returns an error that is not retryable,
// ctx is done, or MaxAttempts invocations were made. It returns the number of
// invocations and the last error. fn must re-read any state it depends on
// because earlier attempts may have partially run.
func (r Retrier) Run(ctx context.Context, fn func(attempt int) error) (int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			if attempt > 1 {
				log.Infof("[Retry] Succeeded after %d attempts", attempt)
			}
			return attempt, nil
		}
		if attempt == maxAttempts || !IsRetryable(lastErr) {
			return attempt, lastErr
		}
		if ctx.Err() != nil {
			return attempt, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}

		delay := r.Backoff(attempt)
		log.Warnf("[Retry] Attempt %d/%d failed, retrying in %v: %v", attempt, maxAttempts, delay, lastErr)
		sleep(delay)
	}
	return maxAttempts, lastErr
}

// Backoff returns the delay after the given 1-based attempt.
func (r Retrier) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return r.BaseDelay * time.Duration(1<<(attempt-1))
}

// MaxBlocking is the longest a request can spend sleeping between attempts.
func (r Retrier) MaxBlocking() time.Duration {
	var total time.Duration
	for k := 1; k < r.MaxAttempts; k++ {
		total += r.Backoff(k)
	}
	return total
}
