package executor

import (
	"context"
	"time"
)

// RetryPolicy bounds the local retry loop used for idempotent persistence
// writes: a fixed number of attempts with exponential backoff between them.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the documented persistence policy: three
// attempts, one second base delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Backoff returns the delay to wait before the given 1-based attempt. The
// first attempt runs immediately; each later attempt doubles the base delay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return p.BaseDelay << (attempt - 2)
}

// Run invokes op until it succeeds or the attempt budget is exhausted,
// sleeping per Backoff in between. The last error is returned on exhaustion.
// Cancellation is honored between attempts, not mid-attempt.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if d := p.Backoff(attempt); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}
