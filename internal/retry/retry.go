// Package retry provides the attempt-with-policy primitive shared by
// the transcript resolver and the AI normalization pipeline.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how an operation is retried: a bounded number of
// attempts with exponential backoff between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the delay to wait after the given zero-based attempt,
// or a negative duration when no further attempt should be made.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.MaxAttempts <= 0 || attempt >= p.MaxAttempts-1 {
		return -1
	}
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, the policy is exhausted, or ctx is
// canceled. Cancellation aborts immediately without consuming further
// attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		delay := p.Backoff(attempt)
		if delay < 0 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no attempts were made (MaxAttempts=%d)", p.MaxAttempts)
	}
	return lastErr
}
