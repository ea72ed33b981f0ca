package retry

import (
	"context"
	"errors"

	"github.com/miniagent-dev/core/internal/backoff"
)

// permanentError marks an error as never-retryable regardless of its
// classified kind, independent of backoff.Retry's own ShouldRetry hook.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so IsPermanent reports true for it and any error
// that wraps it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked
// with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Options configures Do. Policy defaults to backoff.DefaultPolicy and
// Attempts defaults to 3 when unset.
type Options struct {
	Policy    backoff.Policy
	Attempts  int
	OnAttempt func(attempt int, delayMs int64, err error)
}

// Do runs fn up to opts.Attempts times. Between attempts it sleeps
// according to opts.Policy, honoring ctx cancellation. An error wrapped
// with Permanent stops retrying immediately; otherwise the last error
// is returned once attempts are exhausted.
func Do[T any](ctx context.Context, opts Options, fn func(attempt int) (T, error)) (T, int, error) {
	policy := opts.Policy
	if policy == (backoff.Policy{}) {
		policy = backoff.DefaultPolicy()
	}
	result, err := backoff.Retry(ctx, backoff.Options{
		Policy:   policy,
		Attempts: opts.Attempts,
		ShouldRetry: func(err error, attempt int) bool {
			return !IsPermanent(err)
		},
		OnAttempt: opts.OnAttempt,
	}, fn)
	return result.Value, result.Attempts, err
}
