package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrCreateOrderCommandIsNotConstructed = errors.New(
	"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
)

// OrderItem is one requested product line.
type OrderItem struct {
	ProductID kernel.UUID
	Quantity  int64
}

// CreateOrderCommand registers a pending order. Zone and weight are frozen
// later, on the first assignment attempt.
//
// Example:
//
//	cmd, err := NewCreateOrderCommand(kernel.NewUUID(),
//	    order.NewAddress("", "12 Rizal St, San Roque", nil),
//	    []OrderItem{{ProductID: rice, Quantity: 4}})
//	if err != nil {
//	    return fmt.Errorf("invalid order data: %w", err)
//	}
type CreateOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID
	address order.Address
	items   []order.LineItem

	guard guard.ConstructorGuard
}

func NewCreateOrderCommand(orderID kernel.UUID, address order.Address, items []OrderItem) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{
		address: address,
		guard:   guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setItems(items),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	return cmd, nil
}

func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

func (c CreateOrderCommand) OrderID() kernel.UUID {
	return c.orderID
}

func (c CreateOrderCommand) Address() order.Address {
	return c.address
}

func (c CreateOrderCommand) Items() []order.LineItem {
	items := make([]order.LineItem, len(c.items))
	copy(items, c.items)
	return items
}

func (c *CreateOrderCommand) setOrderID(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}

	c.orderID = orderID
	return nil
}

func (c *CreateOrderCommand) setItems(items []OrderItem) error {
	if len(items) == 0 {
		return errs.NewValueIsRequiredError("items")
	}

	lines := make([]order.LineItem, 0, len(items))
	for _, item := range items {
		line, err := order.NewLineItem(item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}

	c.items = lines
	return nil
}
