package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds attempts and spaces them with a backoff function.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the pause after the given 1-based failed attempt.
	Backoff func(attempt int) time.Duration
	// Retryable reports whether err is worth another attempt. Nil treats every error as retryable.
	Retryable func(err error) bool
	// Sleep waits between attempts; nil uses SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// LinearBackoff waits step*attempt after each failure.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

// ConstantBackoff waits d after each failure.
func ConstantBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// NewFetchRetryPolicy is the static-page policy: 3 attempts, 2s*attempt backoff.
func NewFetchRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(2 * time.Second),
	}
}

// NewNavigationRetryPolicy is the browser navigation policy: 3 attempts, 5s apart.
func NewNavigationRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ConstantBackoff(5 * time.Second),
	}
}

// ShouldRetry decides whether the error after the given attempt warrants another try.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts() {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// Do runs fn until it succeeds or the policy gives up, returning the attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx, attempt)
		if !p.ShouldRetry(err, attempt) {
			return attempt, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, fmt.Errorf("%w (retry aborted: %v)", err, ctxErr)
		}
		var pause time.Duration
		if p.Backoff != nil {
			pause = p.Backoff(attempt)
		}
		if sleepErr := p.sleep(ctx, pause); sleepErr != nil {
			return attempt, fmt.Errorf("%w (retry aborted: %v)", err, sleepErr)
		}
	}
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext pauses for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
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
