package commands

import (
	"errors"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrSweepUnassignedCommandIsNotConstructed = errors.New(
	"SweepUnassignedCommand must be created via NewSweepUnassignedCommand constructor",
)

// SweepUnassignedCommand re-submits approved orders without a batch to the
// assignment engine. Limit 0 means every such order.
type SweepUnassignedCommand struct { //nolint:recvcheck //using for validation
	limit int

	guard guard.ConstructorGuard
}

func NewSweepUnassignedCommand(limit int) (SweepUnassignedCommand, error) {
	if limit < 0 {
		return SweepUnassignedCommand{}, errs.NewValueIsOutOfRangeError("limit", limit, 0, "+inf")
	}
	return SweepUnassignedCommand{
		limit: limit,
		guard: guard.NewConstructorGuard(),
	}, nil
}

func (c SweepUnassignedCommand) Validate() error {
	return c.guard.Validate(ErrSweepUnassignedCommandIsNotConstructed)
}

func (c SweepUnassignedCommand) Limit() int {
	return c.limit
}
