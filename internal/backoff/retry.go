package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is Retry's fallback error for a loop that ends
// without a recorded error. When attempts fail, Retry returns the last
// attempt's error instead.
var ErrAttemptsExhausted = errors.New("backoff: attempts exhausted")

// Result holds the outcome of a Retry call.
type Result[T any] struct {
	Value    T
	Attempts int
	LastErr  error
}

// Options configures Retry beyond the numeric policy.
type Options struct {
	Policy Policy
	// Attempts is the maximum number of attempts, default 3.
	Attempts int
	// ShouldRetry, if set, is consulted after every failure; returning
	// false stops retrying immediately even if attempts remain.
	ShouldRetry func(err error, attempt int) bool
	// OnAttempt, if set, is called after every failed attempt with the
	// attempt number, the delay about to be slept, and the error.
	OnAttempt func(attempt int, delay int64, err error)
}

// Retry runs fn up to opts.Attempts times, sleeping according to
// opts.Policy between attempts. Cancellation of ctx aborts retrying
// immediately rather than running one more attempt.
func Retry[T any](ctx context.Context, opts Options, fn func(attempt int) (T, error)) (Result[T], error) {
	var result Result[T]
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 3
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastErr = err
			return result, err
		}

		value, err := fn(attempt)
		if err == nil {
			result.Value = value
			result.LastErr = nil
			return result, nil
		}
		result.LastErr = err

		if opts.ShouldRetry != nil && !opts.ShouldRetry(err, attempt) {
			return result, err
		}
		if attempt >= attempts {
			break
		}

		delay := Compute(opts.Policy, attempt)
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt, delay.Milliseconds(), err)
		}
		if err := sleep(ctx, delay); err != nil {
			result.LastErr = err
			return result, err
		}
	}

	if result.LastErr == nil {
		result.LastErr = ErrAttemptsExhausted
	}
	return result, result.LastErr
}

// sleep blocks for d or until ctx is done, whichever comes first. Every
// backoff wait must be cancellable so an aborted run never lingers in a
// retry gap.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
