package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const maxRetryAttempts = 3

// Retry runs op with exponential backoff, retrying only transient store
// failures as classified by IsRetryable. Any other error aborts immediately.
// Callers must only pass idempotent operations.
func Retry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(maxRetryAttempts))
}
