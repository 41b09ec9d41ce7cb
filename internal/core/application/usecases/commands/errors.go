package commands

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// ErrOrderExceedsCapacity is returned for an order heavier than the max
// capacity of a batch. No batch can ever take it, so it is not retried.
var ErrOrderExceedsCapacity = errors.New("order weight exceeds batch max capacity")

// passThrough lists errors that describe dispatch state rather than a storage
// failure.
var passThrough = []error{
	context.Canceled,
	context.DeadlineExceeded,
	errs.ErrRetryable,
	errs.ErrObjectNotFound,
	errs.ErrValueIsInvalid,
	errs.ErrValueIsRequired,
	errs.ErrValueIsOutOfRange,
	errs.ErrCapacityExceeded,
	ports.ErrBatchCreateConflict,
	ports.ErrOrderAlreadyExists,
	batch.ErrInvalidTransition,
	batch.ErrBatchNotOpen,
	batch.ErrBatchHasDriver,
	order.ErrOrderNotApproved,
	order.ErrOrderAlreadyBatched,
	order.ErrOrderNotBatched,
	order.ErrOrderHasDriver,
}

// storageErr marks failures of a unit of work or repository call as
// retryable unless they already carry a domain meaning.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range passThrough {
		if errors.Is(err, target) {
			return err
		}
	}
	return errs.NewRepositoryUnavailableError(op, err)
}
