package pipeline

import (
	"context"
	"time"
)

// Default retry behavior: three retries after the initial attempt, with a
// linearly increasing delay of retryDelay * attemptNumber.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
)

// BackoffFunc computes the delay before retry number attempt (one-based)
// from the policy's base delay.
type BackoffFunc func(attempt int, base time.Duration) time.Duration

// SleepFunc waits for the given duration or until the context is
// cancelled. Tests inject a no-op implementation to run retry logic
// without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is the retry policy value object consumed by the pipeline.
type Policy struct {
	// MaxRetries is the retry ceiling after the initial attempt.
	MaxRetries int

	// RetryDelay is the base delay fed to the backoff function.
	RetryDelay time.Duration

	// Backoff computes per-retry delays. Nil means LinearBackoff.
	Backoff BackoffFunc

	// Sleep waits between attempts. Nil means a real context-aware sleep.
	Sleep SleepFunc
}

// DefaultPolicy returns the engine's default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Backoff:    LinearBackoff,
	}
}

// LinearBackoff grows the delay linearly with the attempt number:
// base, 2*base, 3*base, ...
func LinearBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * base
}

// delay resolves the wait before the given retry attempt.
func (p Policy) delay(attempt int) time.Duration {
	base := p.RetryDelay
	if base <= 0 {
		base = DefaultRetryDelay
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = LinearBackoff
	}
	return backoff(attempt, base)
}

// wait sleeps before the given retry attempt, honoring cancellation.
func (p Policy) wait(ctx context.Context, attempt int) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = realSleep
	}
	return sleep(ctx, p.delay(attempt))
}

func realSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
