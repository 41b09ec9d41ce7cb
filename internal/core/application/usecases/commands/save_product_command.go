package commands

import (
	"errors"
	"strings"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrSaveProductCommandIsNotConstructed = errors.New(
	"SaveProductCommand must be created via NewSaveProductCommand constructor",
)

// SaveProductCommand records the unit weight the weight calculator uses for
// a product. A nil unit weight marks the product as unweighed, which makes
// orders containing it fail weight calculation.
type SaveProductCommand struct { //nolint:recvcheck //using for validation
	productID  kernel.UUID
	name       string
	unitWeight *kernel.Weight

	guard guard.ConstructorGuard
}

func NewSaveProductCommand(productID kernel.UUID, name string, unitWeight *kernel.Weight) (SaveProductCommand, error) {
	cmd := SaveProductCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setProductID(productID),
		cmd.setName(name),
		cmd.setUnitWeight(unitWeight),
	); err != nil {
		return SaveProductCommand{}, err
	}

	return cmd, nil
}

func (c SaveProductCommand) Validate() error {
	return c.guard.Validate(ErrSaveProductCommandIsNotConstructed)
}

func (c SaveProductCommand) ProductID() kernel.UUID { return c.productID }

func (c SaveProductCommand) Name() string { return c.name }

func (c SaveProductCommand) UnitWeight() *kernel.Weight {
	if c.unitWeight == nil {
		return nil
	}
	w := *c.unitWeight
	return &w
}

func (c *SaveProductCommand) setProductID(productID kernel.UUID) error {
	if err := productID.Validate(); err != nil {
		return err
	}
	c.productID = productID
	return nil
}

func (c *SaveProductCommand) setName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.NewValueIsRequiredError("name")
	}
	c.name = name
	return nil
}

func (c *SaveProductCommand) setUnitWeight(unitWeight *kernel.Weight) error {
	if unitWeight == nil {
		return nil
	}
	if err := unitWeight.Validate(); err != nil {
		return err
	}
	if unitWeight.IsZero() {
		return errs.NewValueIsOutOfRangeError("unit weight", unitWeight.String(), "0 (exclusive)", "+inf")
	}
	w := *unitWeight
	c.unitWeight = &w
	return nil
}
