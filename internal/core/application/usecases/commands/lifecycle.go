package commands

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/metrics"
)

// publish hands committed lifecycle events to the notifier. It runs after
// commit only; a lost notification never undoes a transition.
func publish(ctx context.Context, notifier ports.Notifier, m *metrics.Metrics, events []batch.LifecycleEvent) {
	for _, event := range events {
		m.Transition(event.Status.String())
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}

// lockMembership locks an order together with its batch. Batches are always
// locked before their member orders, so the order is first read without a
// lock to learn its batch. b is nil for an order outside any batch.
func lockMembership(
	ctx context.Context,
	batchRepo ports.BatchRepository,
	orderRepo ports.OrderRepository,
	orderID kernel.UUID,
) (*order.Order, *batch.Batch, error) {
	current, err := orderRepo.Get(ctx, orderID)
	if err != nil {
		return nil, nil, storageErr("load order", err)
	}

	var b *batch.Batch
	if ref := current.BatchRef(); ref != nil {
		if b, err = batchRepo.GetForUpdate(ctx, *ref); err != nil {
			return nil, nil, storageErr("lock batch", err)
		}
	}

	o, err := orderRepo.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, nil, storageErr("lock order", err)
	}

	moved := (b == nil) != (o.BatchRef() == nil) || (b != nil && !o.BelongsTo(b.ID()))
	if moved {
		return nil, nil, errs.NewTransientContentionError("lock order "+orderID.String(),
			errors.New("order changed batch while being locked"))
	}
	return o, b, nil
}

// releaseMember detaches o from b and takes its weight off the stored and the
// in-memory batch totals. The caller persists both aggregates.
func releaseMember(ctx context.Context, batchRepo ports.BatchRepository, o *order.Order, b *batch.Batch) error {
	w, _ := o.Weight()
	if err := batchRepo.SubtractWeight(ctx, b.ID(), w); err != nil {
		return storageErr("release batch capacity", err)
	}
	if err := b.RemoveWeight(w); err != nil {
		if !errors.Is(err, errs.ErrValueIsOutOfRange) {
			return err
		}
		// the stored total had drifted below the member weight; the
		// repository floors at zero and so do we
		if _, err = b.OverwriteWeight(kernel.ZeroWeight()); err != nil {
			return err
		}
	}
	return o.Detach()
}
