// Package errs provides standardized error types for the dispatch engine.
//
// The package has two groups of errors:
//   - Validation errors raised by constructors and value objects:
//     ValueIsRequiredError, ValueIsInvalidError, ValueIsOutOfRangeError and
//     ObjectNotFoundError.
//   - Engine outcome errors that tell callers whether an operation may be
//     retried: RetryableError (TransientContention, RepositoryUnavailable) and
//     the fatal ErrCapacityExceeded.
//
// Each typed error follows the same pattern: a sentinel variable, a struct
// carrying details, constructors with and without a cause, an Error method and
// an Unwrap method returning the sentinel, so errors.Is works on every value.
package errs
