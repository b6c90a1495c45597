package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Policy bounds retries for one source: delay grows as
// base_delay * multiplier^attempt until max_attempts is spent.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// SleepFunc is injected so tests can simulate elapsed time. A nil
// SleepFunc means real timers.
type SleepFunc func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExhaustedError marks a batch whose transient failures outlived the
// retry budget. It is surfaced in run statistics, never retried again
// until the next scheduled run.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("transient-exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Retry runs fn with bounded exponential backoff. Only errors the
// retryable predicate accepts are retried; anything else returns
// immediately. Cancellation is checked between attempts, not
// mid-network-call.
func Retry(ctx context.Context, p Policy, sleep SleepFunc, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if sleep == nil {
		sleep = realSleep
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if retryable != nil && !retryable(last) {
			return last
		}
		if attempt == attempts-1 {
			break
		}

		delay := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
		if delay < 0 {
			delay = p.BaseDelay
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: attempts, Last: last}
}
