package ports

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// ErrOrderAlreadyExists is returned by Add for an id that is already stored.
var ErrOrderAlreadyExists = errors.New("order already exists")

// OrderRepository persists the dispatch view of orders together with their
// line items.
type OrderRepository interface {
	// Add persists a new order and its line items.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update persists zone, weight, states and batch membership. Line items
	// are immutable and are not rewritten.
	Update(ctx context.Context, aggregate *order.Order) error

	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetForUpdate locks the order row until the transaction ends.
	GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// ListByBatch returns the members of a batch regardless of approval state.
	ListByBatch(ctx context.Context, batchID kernel.UUID) ([]*order.Order, error)

	// ListApprovedUnassigned returns up to limit approved orders without a
	// batch, oldest first.
	ListApprovedUnassigned(ctx context.Context, limit int) ([]*order.Order, error)

	// ListInZone returns approved orders whose frozen zone is zone.
	ListInZone(ctx context.Context, zone string) ([]*order.Order, error)
}
