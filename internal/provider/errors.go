package provider

import (
	"context"
	"errors"
	"fmt"
)

// wrapError annotates a raw SDK/transport error with the provider name
// and model so internal/retry.Classify has a string to pattern-match
// against, without introducing a second classification type alongside
// retry.Kind.
func wrapError(providerName, model string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: model %s: %w", providerName, model, err)
}

// isCancelled reports whether err is (or wraps) a context cancellation,
// which retry.Do and the agent loop both treat as terminal regardless
// of retry.Classify's string-based kinds.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
