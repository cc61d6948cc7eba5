package errors

import (
	"context"
	"time"
)

// Retry calls fn up to attempts times, sleeping a fixed delay between tries.
// Only transient errors are retried; any other error is returned at once.
// onRetry, when non-nil, is called before each sleep.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, onRetry func(attempt int, err error)) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}

		if i < attempts-1 {
			if onRetry != nil {
				onRetry(i+1, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
