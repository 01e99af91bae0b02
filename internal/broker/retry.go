package broker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fatalError wraps an error that should stop retryStage immediately,
// regardless of attempts remaining — the ValidationError/CorruptSource
// cases of spec.md §7.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// fatal marks err as non-retryable.
func fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// retryStage runs fn up to maxAttempts times with a fixed backoff between
// attempts, replacing a hand-rolled retry loop with cenkalti/backoff's
// calculator, per spec.md §4.1's per-stage retry policy. fn receives the
// 1-indexed attempt number; wrapping an error with fatal() stops retrying
// immediately even if attempts remain.
func retryStage(ctx context.Context, maxAttempts int, wait time.Duration, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(wait)
	b = backoff.WithMaxRetries(b, uint64(maxAttempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(attempt)
		if err == nil {
			return nil
		}
		var fe *fatalError
		if errors.As(err, &fe) {
			return backoff.Permanent(fe.err)
		}
		return err
	}

	return backoff.Retry(operation, b)
}
