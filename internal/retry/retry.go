// Package retry shields callers from transient upstream throttling.
//
// Do runs an operation and retries it only while the failure looks like a
// rate limit. The delay before retry k is BaseDelay*2^(k-1) plus jitter, and
// the wait is a context-aware timer so a retrying pipeline never holds up
// any other goroutine.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	DefaultMaxRetries = 10
	DefaultBaseDelay  = 4 * time.Second
)

// Policy configures Do. Unset function fields and a zero BaseDelay fall back
// to the defaults; a zero MaxRetries means a single attempt.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration

	// Jitter is added to every delay. Defaults to uniform [0, 1s).
	Jitter func() time.Duration
	// Classify decides whether an error is worth retrying. Defaults to IsThrottling.
	Classify func(error) bool
	// Sleep waits for d or until ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("reached max retries after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Throttled marks the error as a throttling signal for IsThrottling.
func (e *ExhaustedError) Throttled() bool { return true }

// DefaultPolicy retries up to ten times starting at a four second delay.
func DefaultPolicy(logger *slog.Logger) Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Logger:     logger,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Jitter == nil {
		p.Jitter = UniformJitter(time.Second)
	}
	if p.Classify == nil {
		p.Classify = IsThrottling
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// Delay returns the wait before retry attempt (1-indexed), without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt-1))
}

// Do invokes op until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. Non-retryable errors are returned as-is on first
// occurrence; a spent budget yields *ExhaustedError wrapping the last error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	attempts := p.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt) + p.Jitter()
			p.Logger.Warn("retryable error, retrying",
				"attempt", attempt+1,
				"max_attempts", attempts,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr,
			)
			if err := p.Sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !p.Classify(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// SleepContext waits for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// UniformJitter returns a jitter source drawing from [0, max).
func UniformJitter(max time.Duration) func() time.Duration {
	return func() time.Duration {
		if max <= 0 {
			return 0
		}
		return rand.N(max)
	}
}

// NoJitter disables jitter.
func NoJitter() time.Duration { return 0 }
