package commands

import (
	"errors"

	"dispatch/internal/pkg/guard"
)

var ErrReresolveZonesCommandIsNotConstructed = errors.New(
	"ReresolveZonesCommand must be created via NewReresolveZonesCommand constructor",
)

// ReresolveZonesCommand runs the explicit zone repair for orders that were
// batched into the unknown zone, typically after the zone configuration
// gained a name, alias or polygon.
type ReresolveZonesCommand struct {
	guard guard.ConstructorGuard
}

func NewReresolveZonesCommand() ReresolveZonesCommand {
	return ReresolveZonesCommand{
		guard: guard.NewConstructorGuard(),
	}
}

func (c *ReresolveZonesCommand) Validate() error {
	return c.guard.Validate(ErrReresolveZonesCommandIsNotConstructed)
}
