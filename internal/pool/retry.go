package pool

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 300 * time.Millisecond
	defaultRetryJitter   = 100 * time.Millisecond
)

// Retry runs fn up to three times, sleeping base*2^(n-1) plus jitter between
// attempts, and returns the last error once the budget is exhausted. onRetry
// is invoked before each re-attempt (nil is fine); callers use it for retry
// counters.
func Retry[T any](ctx context.Context, onRetry func(attempt uint, err error), fn func() (T, error)) (T, error) {
	return RetryWith(ctx, defaultRetryAttempts, defaultRetryDelay, onRetry, fn)
}

// RetryWith is Retry with an explicit attempt budget and base delay.
func RetryWith[T any](ctx context.Context, attempts uint, baseDelay time.Duration, onRetry func(attempt uint, err error), fn func() (T, error)) (T, error) {
	if attempts == 0 {
		attempts = defaultRetryAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(baseDelay),
		retry.MaxJitter(defaultRetryJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}

	return retry.DoWithData(fn, opts...)
}
