// Package retry implements the exponential-backoff-with-cap idiom used by
// both the upstream client (component A) and chat egress (component H), so
// the two don't duplicate the same math. Grounded on the backoff shape in
// the teacher's internal/strategy/engine.go runWorker (base delay, doubling,
// a hard cap) generalized into a reusable helper.
package retry

import (
	"context"
	"time"
)

// Policy is an exponential backoff schedule: base delay, doubling each
// attempt, capped at Max, stopping after MaxAttempts.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Delay returns the backoff delay before attempt n (1-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		d = p.Max
	}
	return d
}

// Do runs fn up to p.MaxAttempts times, sleeping Delay(attempt) between
// failures, honoring ctx cancellation. retryable decides whether an error
// should be retried at all; non-retryable errors return immediately.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
