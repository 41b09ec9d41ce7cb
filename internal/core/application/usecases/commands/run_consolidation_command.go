package commands

import (
	"errors"

	"dispatch/internal/pkg/guard"
)

var ErrRunConsolidationCommandIsNotConstructed = errors.New(
	"RunConsolidationCommand must be created via NewRunConsolidationCommand constructor",
)

// RunConsolidationCommand triggers one consolidation and repair pass over all
// zones. It is issued by the scheduler and by operators.
//
// Example:
//
//	cmd := NewRunConsolidationCommand()
//	report, err := handler.Handle(ctx, cmd)
//	log.Printf("merged %d, split %d", report.Merged, report.Split)
type RunConsolidationCommand struct {
	guard guard.ConstructorGuard
}

func NewRunConsolidationCommand() RunConsolidationCommand {
	return RunConsolidationCommand{
		guard: guard.NewConstructorGuard(),
	}
}

func (c *RunConsolidationCommand) Validate() error {
	return c.guard.Validate(ErrRunConsolidationCommandIsNotConstructed)
}
