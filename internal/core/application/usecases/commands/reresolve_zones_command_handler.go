package commands

import (
	"context"
	"log/slog"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
)

type ReresolveReport struct {
	Examined   int `json:"examined"`
	Rezoned    int `json:"rezoned"`
	Reassigned int `json:"reassigned"`
	Skipped    int `json:"skipped"`
}

// ReresolveZonesCommandHandler is the only path that changes the zone of an
// order after it was frozen. Orders leave their unknown-zone batch, get the
// newly resolved zone and are assigned again.
//
// Orders whose batch already has a driver are skipped. Emptied batches are
// removed by the next consolidation pass.
type ReresolveZonesCommandHandler struct {
	uowFactory UoWFactory
	resolver   ZoneResolver
	assigner   OrderAssigner
	logger     *slog.Logger
}

func NewReresolveZonesCommandHandler(
	uowFactory UoWFactory,
	resolver ZoneResolver,
	assigner OrderAssigner,
	logger *slog.Logger,
) ReresolveZonesCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return ReresolveZonesCommandHandler{
		uowFactory: uowFactory,
		resolver:   resolver,
		assigner:   assigner,
		logger:     logger.With("component", "zone-repair"),
	}
}

func (h *ReresolveZonesCommandHandler) Handle(ctx context.Context, cmd ReresolveZonesCommand) (ReresolveReport, error) {
	if err := cmd.Validate(); err != nil {
		return ReresolveReport{}, err
	}

	candidates, err := h.candidates(ctx)
	if err != nil {
		return ReresolveReport{}, err
	}

	var report ReresolveReport
	for _, candidate := range candidates {
		id, zone := candidate.orderID, candidate.zone
		report.Examined++
		if services.IsUnknownZone(zone) {
			report.Skipped++
			continue
		}

		rezoned, err := h.rezone(ctx, id, zone)
		if err != nil {
			return report, err
		}
		if !rezoned {
			report.Skipped++
			continue
		}
		report.Rezoned++

		assignCmd, err := NewAssignOrderCommand(id)
		if err != nil {
			return report, err
		}
		if _, err = h.assigner.Handle(ctx, assignCmd); err != nil {
			// the order is approved and unassigned; the sweep picks it up
			h.logger.WarnContext(ctx, "rezoned order not assigned yet", "order_id", id.String(), "error", err)
			continue
		}
		report.Reassigned++
	}

	h.logger.InfoContext(ctx, "zone repair finished",
		"examined", report.Examined,
		"rezoned", report.Rezoned,
		"reassigned", report.Reassigned,
		"skipped", report.Skipped,
	)
	return report, nil
}

type rezoneCandidate struct {
	orderID kernel.UUID
	zone    string
}

// candidates pairs orders of the unknown zone with the zone the resolver now
// yields for them.
func (h *ReresolveZonesCommandHandler) candidates(ctx context.Context) ([]rezoneCandidate, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orders, err := uow.OrderRepository().ListInZone(ctx, services.UnknownZone)
	if err != nil {
		return nil, storageErr("list unknown-zone orders", err)
	}

	resolved := make([]rezoneCandidate, 0, len(orders))
	for _, o := range orders {
		resolved = append(resolved, rezoneCandidate{orderID: o.ID(), zone: h.resolver.Resolve(o.Address())})
	}
	return resolved, nil
}

// rezone moves one order out of its unknown-zone batch and overwrites its
// zone. It reports false when the order no longer qualifies.
func (h *ReresolveZonesCommandHandler) rezone(ctx context.Context, id kernel.UUID, zone string) (bool, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	batchRepo := uow.BatchRepository()
	orderRepo := uow.OrderRepository()

	o, b, err := lockMembership(ctx, batchRepo, orderRepo, id)
	if err != nil {
		return false, err
	}
	if !o.IsApproved() || !services.IsUnknownZone(o.Zone()) {
		return false, nil
	}

	if b != nil {
		if !b.Status().IsPreDriver() {
			return false, nil
		}
		if err = releaseMember(ctx, batchRepo, o, b); err != nil {
			return false, err
		}
		if err = batchRepo.Update(ctx, b); err != nil {
			return false, storageErr("update batch", err)
		}
	}

	if err = o.ReassignZone(zone); err != nil {
		return false, err
	}
	if err = orderRepo.Update(ctx, o); err != nil {
		return false, storageErr("update order", err)
	}
	if err = uow.Commit(ctx); err != nil {
		return false, storageErr("commit", err)
	}

	h.logger.InfoContext(ctx, "order rezoned", "order_id", id.String(), "zone", zone)
	return true, nil
}
