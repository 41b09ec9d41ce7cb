package commands

import (
	"errors"
	"strings"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrRegisterDriversCommandIsNotConstructed = errors.New(
	"RegisterDriversCommand must be created via NewRegisterDriversCommand constructor",
)

// RegisterDriversCommand puts drivers on shift in one zone, making them
// available to assign_driver transitions.
//
// Example:
//
//	cmd, err := NewRegisterDriversCommand("san-roque", []kernel.UUID{driverID})
//	if err != nil {
//	    return fmt.Errorf("invalid roster data: %w", err)
//	}
type RegisterDriversCommand struct { //nolint:recvcheck //using for validation
	zone      string
	driverIDs []kernel.UUID

	guard guard.ConstructorGuard
}

func NewRegisterDriversCommand(zone string, driverIDs []kernel.UUID) (RegisterDriversCommand, error) {
	cmd := RegisterDriversCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setZone(zone),
		cmd.setDriverIDs(driverIDs),
	); err != nil {
		return RegisterDriversCommand{}, err
	}

	return cmd, nil
}

func (c RegisterDriversCommand) Validate() error {
	return c.guard.Validate(ErrRegisterDriversCommandIsNotConstructed)
}

func (c RegisterDriversCommand) Zone() string {
	return c.zone
}

func (c RegisterDriversCommand) DriverIDs() []kernel.UUID {
	ids := make([]kernel.UUID, len(c.driverIDs))
	copy(ids, c.driverIDs)
	return ids
}

func (c *RegisterDriversCommand) setZone(zone string) error {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return errs.NewValueIsRequiredError("zone")
	}

	c.zone = zone
	return nil
}

func (c *RegisterDriversCommand) setDriverIDs(driverIDs []kernel.UUID) error {
	if len(driverIDs) == 0 {
		return errs.NewValueIsRequiredError("driver ids")
	}
	for _, id := range driverIDs {
		if err := id.Validate(); err != nil {
			return err
		}
	}

	c.driverIDs = driverIDs
	return nil
}
