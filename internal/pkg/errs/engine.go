package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrRetryable marks failures after which the order stays unassigned and
	// the same call may be repeated later.
	ErrRetryable = errors.New("operation may be retried")

	// ErrTransientContention is returned when batch creation for a zone raced
	// with another creator twice in a row.
	ErrTransientContention = errors.New("transient contention")

	// ErrRepositoryUnavailable wraps storage failures.
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrDependencyUnavailable wraps failures of collaborators other than
	// storage, such as the driver roster or an open circuit breaker.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrCapacityExceeded signals that a weight change would push a batch past
	// its max capacity. The candidate filter should make this unreachable, so
	// it is a programmer error and never retried.
	ErrCapacityExceeded = errors.New("batch capacity exceeded")
)

// RetryableError carries the kind of a retryable failure together with the
// operation that failed and its cause.
type RetryableError struct {
	Kind  error
	Op    string
	Cause error
}

func NewTransientContentionError(op string, cause error) *RetryableError {
	return &RetryableError{Kind: ErrTransientContention, Op: op, Cause: cause}
}

func NewRepositoryUnavailableError(op string, cause error) *RetryableError {
	return &RetryableError{Kind: ErrRepositoryUnavailable, Op: op, Cause: cause}
}

func NewDependencyUnavailableError(op string, cause error) *RetryableError {
	return &RetryableError{Kind: ErrDependencyUnavailable, Op: op, Cause: cause}
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Kind, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *RetryableError) Unwrap() []error {
	errs := []error{ErrRetryable, e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// IsRetryable reports whether err, anywhere in its chain, is a retryable
// engine failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

type CapacityExceededError struct {
	BatchID  string
	Current  string
	Delta    string
	Capacity string
}

func NewCapacityExceededError(batchID, current, delta, capacity string) *CapacityExceededError {
	return &CapacityExceededError{BatchID: batchID, Current: current, Delta: delta, Capacity: capacity}
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s: batch %s holds %s, adding %s exceeds %s",
		ErrCapacityExceeded, e.BatchID, e.Current, e.Delta, e.Capacity)
}

func (e *CapacityExceededError) Unwrap() error {
	return ErrCapacityExceeded
}
