package commands

import (
	"errors"
	"fmt"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrTransitionBatchCommandIsNotConstructed = errors.New(
	"TransitionBatchCommand must be created via NewTransitionBatchCommand constructor",
)

// BatchAction names an operator-driven batch transition. Readiness and
// delivery completion are derived and have no action.
type BatchAction string

const (
	ActionAssignDriver  BatchAction = "assign_driver"
	ActionStartDelivery BatchAction = "start_delivery"
	ActionCancel        BatchAction = "cancel"
)

func ParseBatchAction(s string) (BatchAction, error) {
	switch a := BatchAction(s); a {
	case ActionAssignDriver, ActionStartDelivery, ActionCancel:
		return a, nil
	default:
		return "", errs.NewValueIsInvalidErrorWithCause("action", fmt.Errorf("unknown batch action %q", s))
	}
}

// TransitionBatchCommand moves a batch along its lifecycle.
//
// Example:
//
//	cmd, err := NewTransitionBatchCommand(batchID, "assign_driver")
//	result, err := handler.Handle(ctx, cmd)
type TransitionBatchCommand struct { //nolint:recvcheck //using for validation
	batchID kernel.UUID
	action  BatchAction

	guard guard.ConstructorGuard
}

func NewTransitionBatchCommand(batchID kernel.UUID, action string) (TransitionBatchCommand, error) {
	cmd := TransitionBatchCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setBatchID(batchID),
		cmd.setAction(action),
	); err != nil {
		return TransitionBatchCommand{}, err
	}

	return cmd, nil
}

func (c TransitionBatchCommand) Validate() error {
	return c.guard.Validate(ErrTransitionBatchCommandIsNotConstructed)
}

func (c TransitionBatchCommand) BatchID() kernel.UUID {
	return c.batchID
}

func (c TransitionBatchCommand) Action() BatchAction {
	return c.action
}

func (c *TransitionBatchCommand) setBatchID(batchID kernel.UUID) error {
	if err := batchID.Validate(); err != nil {
		return err
	}
	c.batchID = batchID
	return nil
}

func (c *TransitionBatchCommand) setAction(action string) error {
	parsed, err := ParseBatchAction(action)
	if err != nil {
		return err
	}
	c.action = parsed
	return nil
}
