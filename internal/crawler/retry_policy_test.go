package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestRetryPolicyDoStopsOnSuccess(t *testing.T) {
	t.Parallel()

	p := NewFetchRetryPolicy()
	var pauses []time.Duration
	p.Sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	attempts, err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return &StatusError{StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, pauses)
}

func TestRetryPolicyDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	p := NewNavigationRetryPolicy()
	p.Sleep = noSleep
	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("nav failed")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, calls)
}

func TestRetryPolicyRespectsRetryablePredicate(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, ErrNotFound) },
		Sleep:       noSleep,
	}
	attempts, err := p.Do(context.Background(), func(context.Context, int) error {
		return ErrNotFound
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, attempts)
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewFetchRetryPolicy()
	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(errors.New("boom"), 1))
	require.False(t, p.ShouldRetry(errors.New("boom"), 3))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, RetryPolicy{}.ShouldRetry(errors.New("boom"), 1))
}

func TestSleepContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
