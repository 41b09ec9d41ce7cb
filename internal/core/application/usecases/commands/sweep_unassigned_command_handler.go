package commands

import (
	"context"
	"log/slog"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// OrderAssigner is the part of the assignment engine other use cases drive.
type OrderAssigner interface {
	Handle(ctx context.Context, cmd AssignOrderCommand) (AssignOrderResult, error)
}

type SweepReport struct {
	Examined int `json:"examined"`
	Assigned int `json:"assigned"`
	Deferred int `json:"deferred"`
	Failed   int `json:"failed"`
}

// SweepUnassignedCommandHandler retries orders whose assignment failed or was
// never attempted, and orders detached from a cancelled batch.
type SweepUnassignedCommandHandler struct {
	uowFactory OrderUoWFactory
	assigner   OrderAssigner
	logger     *slog.Logger
}

func NewSweepUnassignedCommandHandler(
	uowFactory OrderUoWFactory,
	assigner OrderAssigner,
	logger *slog.Logger,
) SweepUnassignedCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return SweepUnassignedCommandHandler{
		uowFactory: uowFactory,
		assigner:   assigner,
		logger:     logger.With("component", "unassigned-sweep"),
	}
}

// Handle assigns each order independently. Failures are counted, never
// returned; only listing the orders can fail the sweep.
func (h *SweepUnassignedCommandHandler) Handle(ctx context.Context, cmd SweepUnassignedCommand) (SweepReport, error) {
	if err := cmd.Validate(); err != nil {
		return SweepReport{}, err
	}

	ids, err := h.pending(ctx, cmd.Limit())
	if err != nil {
		return SweepReport{}, err
	}

	var report SweepReport
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Examined++

		assignCmd, err := NewAssignOrderCommand(id)
		if err != nil {
			return report, err
		}
		_, err = h.assigner.Handle(ctx, assignCmd)
		switch {
		case err == nil:
			report.Assigned++
		case errs.IsRetryable(err):
			report.Deferred++
		default:
			report.Failed++
			h.logger.ErrorContext(ctx, "order could not be assigned", "order_id", id.String(), "error", err)
		}
	}

	if report.Examined > 0 {
		h.logger.InfoContext(ctx, "unassigned sweep finished",
			"examined", report.Examined,
			"assigned", report.Assigned,
			"deferred", report.Deferred,
			"failed", report.Failed,
		)
	}
	return report, nil
}

func (h *SweepUnassignedCommandHandler) pending(ctx context.Context, limit int) ([]kernel.UUID, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orders, err := uow.OrderRepository().ListApprovedUnassigned(ctx, limit)
	if err != nil {
		return nil, storageErr("list unassigned orders", err)
	}

	ids := make([]kernel.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID())
	}
	return ids, nil
}
