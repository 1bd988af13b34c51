// Package retry runs an operation under a bounded, constant-delay retry policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and for which errors an operation is retried.
type Policy struct {
	MaxAttempts int           // Total attempts including the first; values below 1 mean 1
	Delay       time.Duration // Fixed wait between attempts
	Retryable   func(error) bool
}

// Single is the policy of operations that are never retried.
var Single = Policy{MaxAttempts: 1}

// Notify is called after a failed attempt that will be retried.
type Notify func(err error, attempt int, wait time.Duration)

// Do runs op until it succeeds, fails with a non-retryable error, the attempt
// budget is spent, or ctx is done. It returns the number of attempts made and
// the error of the last attempt (or ctx's error when cancelled while waiting).
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	return p.DoNotify(ctx, op, nil)
}

// DoNotify is Do with a callback before each wait.
func (p Policy) DoNotify(ctx context.Context, op func(ctx context.Context, attempt int) error, notify Notify) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := op(ctx, attempts)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(maxAttempts-1))
	b = backoff.WithContext(b, ctx)

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, attempts, wait)
		}
	}

	err := backoff.RetryNotify(operation, b, onRetry)
	return attempts, err
}
