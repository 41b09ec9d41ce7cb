package order

import (
	"errors"
	"fmt"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrLineItemIsNotConstructed = errors.New("LineItem must be created via NewLineItem constructor")

// LineItem is one product line of an order.
type LineItem struct {
	productID kernel.UUID
	quantity  int64
	guard     guard.ConstructorGuard
}

func NewLineItem(productID kernel.UUID, quantity int64) (LineItem, error) {
	var errQty error
	if quantity <= 0 {
		errQty = errs.NewValueIsInvalidErrorWithCause("quantity", fmt.Errorf("%d is not greater than 0", quantity))
	}
	if err := errors.Join(productID.Validate(), errQty); err != nil {
		return LineItem{}, err
	}
	return LineItem{productID: productID, quantity: quantity, guard: guard.NewConstructorGuard()}, nil
}

func (li LineItem) Validate() error {
	return li.guard.Validate(ErrLineItemIsNotConstructed)
}

func (li LineItem) ProductID() kernel.UUID { return li.productID }

func (li LineItem) Quantity() int64 { return li.quantity }
