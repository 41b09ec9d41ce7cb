package commands

import (
	"context"
	"errors"
	"log/slog"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/ports"
)

// BatchTransitioner is the part of the lifecycle coordinator other use cases
// drive.
type BatchTransitioner interface {
	Handle(ctx context.Context, cmd TransitionBatchCommand) (TransitionBatchResult, error)
}

type DriverAssignmentReport struct {
	Examined int `json:"examined"`
	Assigned int `json:"assigned"`
	Waiting  int `json:"waiting"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// AssignDriversCommandHandler walks ready batches oldest first and runs the
// assign_driver transition on each.
//
// Business rules:
//   - a zone whose roster is empty is not asked again in the same pass; its
//     remaining batches count as waiting
//   - a batch that left ready_for_delivery since it was listed is skipped
//   - other failures are counted and logged, never returned
//
// Handle returns ports.ErrNoDriverAvailable when ready batches exist but none
// of them got a driver.
type AssignDriversCommandHandler struct {
	uowFactory   UoWFactory
	transitioner BatchTransitioner
	logger       *slog.Logger
}

func NewAssignDriversCommandHandler(
	uowFactory UoWFactory,
	transitioner BatchTransitioner,
	logger *slog.Logger,
) AssignDriversCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return AssignDriversCommandHandler{
		uowFactory:   uowFactory,
		transitioner: transitioner,
		logger:       logger.With("component", "driver-assignment"),
	}
}

func (h *AssignDriversCommandHandler) Handle(ctx context.Context, cmd AssignDriversCommand) (DriverAssignmentReport, error) {
	if err := cmd.Validate(); err != nil {
		return DriverAssignmentReport{}, err
	}

	ready, err := h.ready(ctx, cmd.Limit())
	if err != nil {
		return DriverAssignmentReport{}, err
	}

	var report DriverAssignmentReport
	drained := make(map[string]struct{})
	for _, b := range ready {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Examined++

		if _, ok := drained[b.Zone()]; ok {
			report.Waiting++
			continue
		}

		transition, err := NewTransitionBatchCommand(b.ID(), string(ActionAssignDriver))
		if err != nil {
			return report, err
		}
		_, err = h.transitioner.Handle(ctx, transition)
		switch {
		case err == nil:
			report.Assigned++
		case errors.Is(err, ports.ErrNoDriverAvailable):
			drained[b.Zone()] = struct{}{}
			report.Waiting++
		case errors.Is(err, batch.ErrInvalidTransition):
			report.Skipped++
		default:
			report.Failed++
			h.logger.ErrorContext(ctx, "driver could not be assigned",
				"batch_id", b.ID().String(), "zone", b.Zone(), "error", err)
		}
	}

	if report.Examined > 0 {
		h.logger.InfoContext(ctx, "driver assignment finished",
			"examined", report.Examined,
			"assigned", report.Assigned,
			"waiting", report.Waiting,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	if report.Waiting > 0 && report.Assigned == 0 {
		return report, ports.ErrNoDriverAvailable
	}
	return report, nil
}

func (h *AssignDriversCommandHandler) ready(ctx context.Context, limit int) ([]*batch.Batch, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	batches, err := uow.BatchRepository().ListReady(ctx, limit)
	if err != nil {
		return nil, storageErr("list ready batches", err)
	}
	return batches, nil
}

var _ BatchTransitioner = (*TransitionBatchCommandHandler)(nil)
