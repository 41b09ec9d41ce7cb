package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/metrics"
)

type TransitionBatchResult struct {
	BatchID  kernel.UUID
	Status   batch.Status
	DriverID *kernel.UUID
	Members  int
}

// TransitionBatchCommandHandler applies operator transitions and mirrors them
// onto member orders in the same transaction.
//
// Business rules:
//   - assign_driver needs a ready batch and a free driver of the batch zone
//   - start_delivery needs an assigned batch
//   - cancel needs a pending batch and detaches every member so the
//     unassigned sweep can batch them again
//
// A driver picked for a transition that does not commit is handed back to
// the roster.
type TransitionBatchCommandHandler struct {
	uowFactory UoWFactory
	roster     ports.DriverRoster
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        Clock
}

func NewTransitionBatchCommandHandler(
	uowFactory UoWFactory,
	roster ports.DriverRoster,
	notifier ports.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) TransitionBatchCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return TransitionBatchCommandHandler{
		uowFactory: uowFactory,
		roster:     roster,
		notifier:   notifier,
		metrics:    m,
		logger:     logger.With("component", "lifecycle-coordinator"),
		now:        utcNow,
	}
}

func (h *TransitionBatchCommandHandler) Handle(
	ctx context.Context,
	cmd TransitionBatchCommand,
) (result TransitionBatchResult, err error) {
	if err = cmd.Validate(); err != nil {
		return TransitionBatchResult{}, err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return TransitionBatchResult{}, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	batchRepo := uow.BatchRepository()
	orderRepo := uow.OrderRepository()

	b, err := batchRepo.GetForUpdate(ctx, cmd.BatchID())
	if err != nil {
		return TransitionBatchResult{}, storageErr("lock batch", err)
	}
	members, err := orderRepo.ListByBatch(ctx, b.ID())
	if err != nil {
		return TransitionBatchResult{}, storageErr("load members", err)
	}

	switch cmd.Action() {
	case ActionAssignDriver:
		if _, err = b.Status().TransitionTo(batch.StatusAssigned); err != nil {
			return TransitionBatchResult{}, err
		}
		driverID, pickErr := h.pickDriver(ctx, b.Zone())
		if pickErr != nil {
			return TransitionBatchResult{}, pickErr
		}
		committed := false
		defer func() {
			if !committed {
				h.returnDriver(ctx, b.Zone(), driverID)
			}
		}()

		if err = b.AssignDriver(driverID); err != nil {
			return TransitionBatchResult{}, err
		}
		if err = advanceMembers(members, order.DeliveryAssigned); err != nil {
			return TransitionBatchResult{}, err
		}
		if err = h.save(ctx, uow, b, members); err != nil {
			return TransitionBatchResult{}, err
		}
		committed = true

	case ActionStartDelivery:
		if err = b.StartDelivery(); err != nil {
			return TransitionBatchResult{}, err
		}
		if err = advanceMembers(members, order.DeliveryDelivering); err != nil {
			return TransitionBatchResult{}, err
		}
		if err = h.save(ctx, uow, b, members); err != nil {
			return TransitionBatchResult{}, err
		}

	case ActionCancel:
		if err = b.Cancel(); err != nil {
			return TransitionBatchResult{}, err
		}
		for _, member := range members {
			if err = member.Detach(); err != nil {
				return TransitionBatchResult{}, err
			}
		}
		if _, err = b.OverwriteWeight(kernel.ZeroWeight()); err != nil {
			return TransitionBatchResult{}, err
		}
		if err = h.save(ctx, uow, b, members); err != nil {
			return TransitionBatchResult{}, err
		}
	}

	publish(ctx, h.notifier, h.metrics, []batch.LifecycleEvent{b.Event(h.now())})
	h.logger.InfoContext(ctx, "batch transitioned",
		"batch_id", b.ID().String(),
		"zone", b.Zone(),
		"status", b.Status().String(),
		"members", len(members),
	)

	return TransitionBatchResult{
		BatchID:  b.ID(),
		Status:   b.Status(),
		DriverID: b.Driver(),
		Members:  len(members),
	}, nil
}

func (h *TransitionBatchCommandHandler) save(ctx context.Context, uow UoW, b *batch.Batch, members []*order.Order) error {
	orderRepo := uow.OrderRepository()
	for _, member := range members {
		if err := orderRepo.Update(ctx, member); err != nil {
			return storageErr("update member", err)
		}
	}
	if err := uow.BatchRepository().Update(ctx, b); err != nil {
		return storageErr("update batch", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (h *TransitionBatchCommandHandler) pickDriver(ctx context.Context, zone string) (kernel.UUID, error) {
	driverID, err := h.roster.PickAvailableDriver(ctx, zone)
	switch {
	case err == nil:
		return driverID, nil
	case errors.Is(err, ports.ErrNoDriverAvailable):
		return kernel.UUID{}, fmt.Errorf("zone %s: %w", zone, err)
	default:
		return kernel.UUID{}, errs.NewDependencyUnavailableError("pick driver in zone "+zone, err)
	}
}

func (h *TransitionBatchCommandHandler) returnDriver(ctx context.Context, zone string, driverID kernel.UUID) {
	if err := h.roster.ReturnDriver(context.WithoutCancel(ctx), zone, driverID); err != nil {
		h.logger.ErrorContext(ctx, "picked driver could not be returned to the roster",
			"zone", zone, "driver_id", driverID.String(), "error", err)
	}
}

// advanceMembers mirrors the batch status onto approved members.
func advanceMembers(members []*order.Order, target order.DeliveryState) error {
	for _, member := range members {
		if !member.IsApproved() {
			continue
		}
		if err := member.AdvanceDelivery(target); err != nil {
			return fmt.Errorf("order %s: %w", member.ID(), err)
		}
	}
	return nil
}
