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

type CancelOrderResult struct {
	OrderID kernel.UUID

	// BatchID is the batch the order was removed from, if any.
	BatchID *kernel.UUID

	// BatchCancelled is set when the order was the last member of a pending
	// batch.
	BatchCancelled bool

	AlreadyCancelled bool
}

// CancelOrderCommandHandler rejects an order. A batched order is detached and
// its weight leaves the batch total in the same transaction.
type CancelOrderCommandHandler struct {
	uowFactory UoWFactory
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        Clock
}

func NewCancelOrderCommandHandler(
	uowFactory UoWFactory,
	notifier ports.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) CancelOrderCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return CancelOrderCommandHandler{
		uowFactory: uowFactory,
		notifier:   notifier,
		metrics:    m,
		logger:     logger.With("component", "lifecycle-coordinator"),
		now:        utcNow,
	}
}

func (h *CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (CancelOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return CancelOrderResult{}, err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return CancelOrderResult{}, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	batchRepo := uow.BatchRepository()
	orderRepo := uow.OrderRepository()

	o, b, err := lockMembership(ctx, batchRepo, orderRepo, cmd.OrderID())
	if err != nil {
		return CancelOrderResult{}, err
	}

	result := CancelOrderResult{OrderID: o.ID()}
	if o.ApprovalState() == order.ApprovalRejected {
		result.AlreadyCancelled = true
		return result, nil
	}

	var events []batch.LifecycleEvent
	if b != nil {
		if !b.Status().IsPreDriver() {
			return CancelOrderResult{}, fmt.Errorf("%w: batch %s is %s", order.ErrOrderHasDriver, b.ID(), b.Status())
		}
		if events, err = h.removeFromBatch(ctx, batchRepo, orderRepo, o, b); err != nil {
			return CancelOrderResult{}, err
		}
		id := b.ID()
		result.BatchID = &id
		result.BatchCancelled = b.Status() == batch.StatusCancelled
	}

	if err = o.Reject(); err != nil {
		return CancelOrderResult{}, err
	}
	if err = orderRepo.Update(ctx, o); err != nil {
		return CancelOrderResult{}, storageErr("update order", err)
	}
	if b != nil {
		if err = batchRepo.Update(ctx, b); err != nil {
			return CancelOrderResult{}, storageErr("update batch", err)
		}
	}
	if err = uow.Commit(ctx); err != nil {
		return CancelOrderResult{}, storageErr("commit", err)
	}

	publish(ctx, h.notifier, h.metrics, events)
	h.logger.InfoContext(ctx, "order cancelled",
		"order_id", o.ID().String(),
		"batch_cancelled", result.BatchCancelled,
	)
	return result, nil
}

// removeFromBatch detaches o and takes its weight off b. A pending batch left
// without members is cancelled.
func (h *CancelOrderCommandHandler) removeFromBatch(
	ctx context.Context,
	batchRepo ports.BatchRepository,
	orderRepo ports.OrderRepository,
	o *order.Order,
	b *batch.Batch,
) ([]batch.LifecycleEvent, error) {
	if err := releaseMember(ctx, batchRepo, o, b); err != nil {
		return nil, err
	}

	if b.Status() != batch.StatusPending {
		return nil, nil
	}
	members, err := orderRepo.ListByBatch(ctx, b.ID())
	if err != nil {
		return nil, storageErr("load members", err)
	}
	for _, member := range members {
		if member.ID() != o.ID() {
			return nil, nil
		}
	}
	if err = b.Cancel(); err != nil {
		return nil, err
	}
	return []batch.LifecycleEvent{b.Event(h.now())}, nil
}
