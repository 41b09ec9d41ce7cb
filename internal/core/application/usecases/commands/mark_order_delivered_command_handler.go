package commands

import (
	"context"
	"fmt"
	"log/slog"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/metrics"
)

type MarkOrderDeliveredResult struct {
	OrderID kernel.UUID
	BatchID kernel.UUID

	// AlreadyDelivered is set when the order was delivered before the call.
	AlreadyDelivered bool

	// BatchDelivered is set when the batch is delivered after the call.
	BatchDelivered bool
}

// MarkOrderDeliveredCommandHandler derives the delivering -> delivered batch
// transition from member orders.
type MarkOrderDeliveredCommandHandler struct {
	uowFactory UoWFactory
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        Clock
}

func NewMarkOrderDeliveredCommandHandler(
	uowFactory UoWFactory,
	notifier ports.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) MarkOrderDeliveredCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return MarkOrderDeliveredCommandHandler{
		uowFactory: uowFactory,
		notifier:   notifier,
		metrics:    m,
		logger:     logger.With("component", "lifecycle-coordinator"),
		now:        utcNow,
	}
}

func (h *MarkOrderDeliveredCommandHandler) Handle(
	ctx context.Context,
	cmd MarkOrderDeliveredCommand,
) (MarkOrderDeliveredResult, error) {
	if err := cmd.Validate(); err != nil {
		return MarkOrderDeliveredResult{}, err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return MarkOrderDeliveredResult{}, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	batchRepo := uow.BatchRepository()
	orderRepo := uow.OrderRepository()

	o, b, err := lockMembership(ctx, batchRepo, orderRepo, cmd.OrderID())
	if err != nil {
		return MarkOrderDeliveredResult{}, err
	}
	if b == nil {
		return MarkOrderDeliveredResult{}, fmt.Errorf("%w: order %s", order.ErrOrderNotBatched, o.ID())
	}

	result := MarkOrderDeliveredResult{OrderID: o.ID(), BatchID: b.ID()}
	if o.DeliveryState() == order.DeliveryDelivered {
		result.AlreadyDelivered = true
		result.BatchDelivered = b.Status() == batch.StatusDelivered
		return result, nil
	}
	if b.Status() != batch.StatusDelivering {
		return MarkOrderDeliveredResult{}, fmt.Errorf("%w: batch %s is %s, orders are delivered while it is delivering",
			batch.ErrInvalidTransition, b.ID(), b.Status())
	}

	if err = o.AdvanceDelivery(order.DeliveryDelivered); err != nil {
		return MarkOrderDeliveredResult{}, err
	}
	if err = orderRepo.Update(ctx, o); err != nil {
		return MarkOrderDeliveredResult{}, storageErr("update order", err)
	}

	members, err := orderRepo.ListByBatch(ctx, b.ID())
	if err != nil {
		return MarkOrderDeliveredResult{}, storageErr("load members", err)
	}

	var events []batch.LifecycleEvent
	if allDelivered(members, o) {
		if err = b.MarkDelivered(); err != nil {
			return MarkOrderDeliveredResult{}, err
		}
		if err = batchRepo.Update(ctx, b); err != nil {
			return MarkOrderDeliveredResult{}, storageErr("update batch", err)
		}
		events = append(events, b.Event(h.now()))
		result.BatchDelivered = true
	}

	if err = uow.Commit(ctx); err != nil {
		return MarkOrderDeliveredResult{}, storageErr("commit", err)
	}

	publish(ctx, h.notifier, h.metrics, events)
	if result.BatchDelivered {
		h.logger.InfoContext(ctx, "batch delivered", "batch_id", b.ID().String(), "zone", b.Zone())
	}
	return result, nil
}

// allDelivered checks approved members; delivered is the in-memory state of
// the order just changed.
func allDelivered(members []*order.Order, delivered *order.Order) bool {
	for _, member := range members {
		if member.ID() == delivered.ID() {
			member = delivered
		}
		if member.IsApproved() && member.DeliveryState() != order.DeliveryDelivered {
			return false
		}
	}
	return true
}
