package persistence

import "github.com/pkg/errors"

// Error reports an adapter-side failure. The pipeline retains the pending
// snapshot/gap batch and retries on the next flush tick rather than
// discarding data on the first failure.
type Error struct {
	Op    string
	cause error
}

func (e *Error) Error() string {
	return "persistence: " + e.Op + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Wrap annotates a lower-level storage error (a driver error, a disk-full
// condition) as a persistence Error so the pipeline's retry policy can
// recognize it regardless of adapter implementation.
func Wrap(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, cause: errors.WithStack(cause)}
}
