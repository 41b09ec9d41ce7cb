package commands

import (
	"errors"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrAssignDriversCommandIsNotConstructed = errors.New(
	"AssignDriversCommand must be created via NewAssignDriversCommand constructor",
)

// AssignDriversCommand binds free drivers to batches that are ready for
// delivery. Limit 0 means every ready batch.
type AssignDriversCommand struct { //nolint:recvcheck //using for validation
	limit int

	guard guard.ConstructorGuard
}

func NewAssignDriversCommand(limit int) (AssignDriversCommand, error) {
	if limit < 0 {
		return AssignDriversCommand{}, errs.NewValueIsOutOfRangeError("limit", limit, 0, "+inf")
	}
	return AssignDriversCommand{
		limit: limit,
		guard: guard.NewConstructorGuard(),
	}, nil
}

func (c AssignDriversCommand) Validate() error {
	return c.guard.Validate(ErrAssignDriversCommandIsNotConstructed)
}

func (c AssignDriversCommand) Limit() int {
	return c.limit
}
