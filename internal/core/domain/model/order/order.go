package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order was not created
	// through NewOrder or RestoreOrder.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder or RestoreOrder constructor")

	// ErrOrderNotApproved is returned when a batch operation is attempted on an
	// order whose approval state is not approved.
	ErrOrderNotApproved = errors.New("order is not approved")

	// ErrOrderAlreadyBatched is returned by AttachToBatch for an order that
	// already references a batch.
	ErrOrderAlreadyBatched = errors.New("order already belongs to a batch")

	// ErrOrderNotBatched is returned by operations that need a batch reference.
	ErrOrderNotBatched = errors.New("order does not belong to a batch")

	// ErrOrderHasDriver is returned when batch membership would change after a
	// driver took over the order's batch.
	ErrOrderHasDriver = errors.New("order batch already has a driver")
)

// Order is the aggregate root for everything batch dispatch knows about an
// order.
//
// Order follows these invariants:
//   - zone and weight, once set, never change except through ReassignZone
//   - weight is strictly positive
//   - batchRef is set only on approved orders with zone and weight frozen
//   - batchedAt is set exactly when batchRef is set
//   - deliveryState is Pending whenever batchRef is nil
type Order struct {
	id      kernel.UUID
	address Address
	items   []LineItem

	// zone is empty until resolved at approval time
	zone string

	// weight is nil until computed
	weight *kernel.Weight

	approval ApprovalState
	delivery DeliveryState

	batchRef  *kernel.UUID
	batchedAt *time.Time

	guard guard.ConstructorGuard
}

// Snapshot carries persisted order state into RestoreOrder.
type Snapshot struct {
	Zone      string
	Weight    *kernel.Weight
	Approval  ApprovalState
	Delivery  DeliveryState
	BatchRef  *kernel.UUID
	BatchedAt *time.Time
}

// NewOrder creates an order awaiting approval. It has no zone, weight or batch
// yet.
//
// Example:
//
//	item, _ := order.NewLineItem(productID, 3)
//	o, err := order.NewOrder(kernel.NewUUID(), order.NewAddress("", "12 Rizal St, San Roque", nil), []order.LineItem{item})
func NewOrder(id kernel.UUID, address Address, items []LineItem) (*Order, error) {
	o := &Order{
		address:  address,
		approval: ApprovalPending,
		delivery: DeliveryPending,
		guard:    guard.NewConstructorGuard(),
	}

	if err := errors.Join(o.setID(id), o.setItems(items)); err != nil {
		return nil, err
	}

	return o, nil
}

// RestoreOrder rebuilds an order from storage and checks the cross-field
// invariants listed on Order.
func RestoreOrder(id kernel.UUID, address Address, items []LineItem, s Snapshot) (*Order, error) {
	o := &Order{
		address:   address,
		zone:      strings.TrimSpace(s.Zone),
		approval:  s.Approval,
		delivery:  s.Delivery,
		batchRef:  s.BatchRef,
		batchedAt: s.BatchedAt,
		guard:     guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		o.setID(id),
		o.setItems(items),
		s.Approval.Validate(),
		s.Delivery.Validate(),
		o.restoreWeight(s.Weight),
	); err != nil {
		return nil, err
	}

	if (o.batchRef == nil) != (o.batchedAt == nil) {
		return nil, errs.NewValueIsInvalidErrorWithCause("batchedAt", errors.New("must be set together with batchRef"))
	}
	if o.batchRef == nil && o.delivery != DeliveryPending {
		return nil, errs.NewValueIsInvalidErrorWithCause("delivery state",
			fmt.Errorf("%s requires a batch", o.delivery))
	}

	return o, nil
}

func (o *Order) Validate() error {
	if o == nil {
		return ErrOrderIsNotConstructed
	}
	return o.guard.Validate(ErrOrderIsNotConstructed)
}

func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

func (o *Order) ID() kernel.UUID { return o.id }

func (o *Order) Address() Address { return o.address }

// Items returns a copy of the order's line items.
func (o *Order) Items() []LineItem {
	items := make([]LineItem, len(o.items))
	copy(items, o.items)
	return items
}

// Zone returns the frozen zone, or "" before resolution.
func (o *Order) Zone() string { return o.zone }

func (o *Order) HasZone() bool { return o.zone != "" }

// Weight returns the frozen weight and whether it has been computed.
func (o *Order) Weight() (kernel.Weight, bool) {
	if o.weight == nil {
		return kernel.Weight{}, false
	}
	return *o.weight, true
}

func (o *Order) ApprovalState() ApprovalState { return o.approval }

func (o *Order) DeliveryState() DeliveryState { return o.delivery }

func (o *Order) IsApproved() bool { return o.approval == ApprovalApproved }

// BatchRef returns the parent batch id, or nil for an unassigned order.
func (o *Order) BatchRef() *kernel.UUID {
	if o.batchRef == nil {
		return nil
	}
	ref := *o.batchRef
	return &ref
}

// BatchedAt is when the order joined its current batch.
func (o *Order) BatchedAt() *time.Time {
	if o.batchedAt == nil {
		return nil
	}
	at := *o.batchedAt
	return &at
}

func (o *Order) IsBatched() bool { return o.batchRef != nil }

// BelongsTo reports whether the order is a member of batchID.
func (o *Order) BelongsTo(batchID kernel.UUID) bool {
	return o.batchRef != nil && o.batchRef.IsEqual(batchID)
}

func (o *Order) Approve() error {
	next, err := o.approval.Approve()
	if err != nil {
		return err
	}
	o.approval = next
	return nil
}

// Reject marks the order rejected. A batched order must be detached first so
// that its weight leaves the batch total in the same transaction.
func (o *Order) Reject() error {
	if o.batchRef != nil {
		return ErrOrderAlreadyBatched
	}
	next, err := o.approval.Reject()
	if err != nil {
		return err
	}
	o.approval = next
	return nil
}

// FreezeZone records the resolved zone. It is a no-op when a zone is already
// set.
func (o *Order) FreezeZone(zone string) error {
	if o.zone != "" {
		return nil
	}
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return errs.NewValueIsRequiredError("zone")
	}
	o.zone = zone
	return nil
}

// FreezeWeight records the computed weight. It is a no-op when a weight is
// already set.
func (o *Order) FreezeWeight(w kernel.Weight) error {
	if o.weight != nil {
		return nil
	}
	if err := validatePositive(w); err != nil {
		return err
	}
	o.weight = &w
	return nil
}

// ReassignZone overwrites the frozen zone. It is the explicit zone repair and
// is only allowed while the order is outside any batch.
func (o *Order) ReassignZone(zone string) error {
	if o.batchRef != nil {
		return ErrOrderAlreadyBatched
	}
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return errs.NewValueIsRequiredError("zone")
	}
	o.zone = zone
	return nil
}

// CanJoinBatch checks everything AttachToBatch requires.
func (o *Order) CanJoinBatch() error {
	if o.approval != ApprovalApproved {
		return ErrOrderNotApproved
	}
	if o.batchRef != nil {
		return ErrOrderAlreadyBatched
	}
	var errZone, errWeight error
	if o.zone == "" {
		errZone = errs.NewValueIsRequiredError("zone")
	}
	if o.weight == nil {
		errWeight = errs.NewValueIsRequiredError("weight")
	}
	return errors.Join(errZone, errWeight)
}

// AttachToBatch makes the order a member of batchID.
func (o *Order) AttachToBatch(batchID kernel.UUID, at time.Time) error {
	if err := batchID.Validate(); err != nil {
		return err
	}
	if err := o.CanJoinBatch(); err != nil {
		return err
	}
	o.batchRef = &batchID
	o.batchedAt = &at
	o.delivery = DeliveryPending
	return nil
}

// MoveToBatch transfers the order between two batches of the same zone during
// compaction.
func (o *Order) MoveToBatch(batchID kernel.UUID, at time.Time) error {
	if err := batchID.Validate(); err != nil {
		return err
	}
	if o.batchRef == nil {
		return ErrOrderNotBatched
	}
	if o.delivery != DeliveryPending {
		return ErrOrderHasDriver
	}
	o.batchRef = &batchID
	o.batchedAt = &at
	return nil
}

// Detach removes the order from its batch, leaving it approved and unassigned.
func (o *Order) Detach() error {
	if o.batchRef == nil {
		return ErrOrderNotBatched
	}
	if o.delivery != DeliveryPending {
		return ErrOrderHasDriver
	}
	o.batchRef = nil
	o.batchedAt = nil
	return nil
}

// AdvanceDelivery mirrors a batch transition onto the order.
func (o *Order) AdvanceDelivery(target DeliveryState) error {
	if o.batchRef == nil {
		return ErrOrderNotBatched
	}
	next, err := o.delivery.Advance(target)
	if err != nil {
		return err
	}
	o.delivery = next
	return nil
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *Order) setItems(items []LineItem) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("line item %d: %w", i, err)
		}
	}
	o.items = make([]LineItem, len(items))
	copy(o.items, items)
	return nil
}

func (o *Order) restoreWeight(w *kernel.Weight) error {
	if w == nil {
		return nil
	}
	if err := validatePositive(*w); err != nil {
		return err
	}
	frozen := *w
	o.weight = &frozen
	return nil
}

func validatePositive(w kernel.Weight) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.IsZero() {
		return errs.NewValueIsInvalidErrorWithCause("weight", errors.New("0 is not greater than 0"))
	}
	return nil
}
