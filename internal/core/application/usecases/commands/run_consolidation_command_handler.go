package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/metrics"
)

// ConsolidationReport counts what one pass changed.
type ConsolidationReport struct {
	Merged    int `json:"merged"`
	Moved     int `json:"moved"`
	Split     int `json:"split"`
	Deleted   int `json:"deleted"`
	Corrected int `json:"corrected"`
	Readied   int `json:"readied"`
}

func (r ConsolidationReport) IsEmpty() bool {
	return r == ConsolidationReport{}
}

// RunConsolidationCommandHandler repairs batches that concurrent assignment
// and drift left in a worse shape than necessary.
//
// One pass runs these steps:
//  1. compaction, one transaction per zone with more than one pending batch:
//     merge pending batches whose combined weight fits, then top up older
//     batches with single orders from newer ones
//  2. split pre-driver batches whose recomputed weight exceeds max capacity
//  3. delete pre-driver batches without members
//  4. overwrite every remaining total with its recomputed value and
//     re-evaluate readiness
//
// Steps 2 to 4 share one transaction. Every step locks its rows with SKIP
// LOCKED, so batches an assignment is writing to are left for the next pass.
// Running the pass again right away changes nothing.
type RunConsolidationCommandHandler struct {
	uowFactory UoWFactory
	planner    services.ConsolidationPlanner
	policy     batch.CapacityPolicy
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        Clock
}

func NewRunConsolidationCommandHandler(
	uowFactory UoWFactory,
	policy batch.CapacityPolicy,
	notifier ports.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) RunConsolidationCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return RunConsolidationCommandHandler{
		uowFactory: uowFactory,
		planner:    services.NewConsolidationPlanner(),
		policy:     policy,
		notifier:   notifier,
		metrics:    m,
		logger:     logger.With("component", "consolidation"),
		now:        utcNow,
	}
}

// Handle runs one pass. A zone that fails is logged and skipped; the joined
// failures are returned together with the report of what did succeed.
func (h *RunConsolidationCommandHandler) Handle(ctx context.Context, cmd RunConsolidationCommand) (ConsolidationReport, error) {
	if err := cmd.Validate(); err != nil {
		return ConsolidationReport{}, err
	}

	var report ConsolidationReport
	zones, err := h.zonesToCompact(ctx)
	if err != nil {
		return report, err
	}

	var failures []error
	for _, zone := range zones {
		if err = h.compactZone(ctx, zone, &report); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			h.logger.WarnContext(ctx, "zone compaction failed", "zone", zone, "error", err)
			failures = append(failures, fmt.Errorf("compact zone %s: %w", zone, err))
		}
	}

	if err = h.repair(ctx, &report); err != nil {
		h.logger.WarnContext(ctx, "batch repair failed", "error", err)
		failures = append(failures, fmt.Errorf("repair batches: %w", err))
	}

	h.record(report)
	if !report.IsEmpty() {
		h.logger.InfoContext(ctx, "consolidation applied",
			"merged", report.Merged,
			"moved", report.Moved,
			"split", report.Split,
			"deleted", report.Deleted,
			"corrected", report.Corrected,
			"readied", report.Readied,
		)
	}

	return report, errors.Join(failures...)
}

func (h *RunConsolidationCommandHandler) zonesToCompact(ctx context.Context) ([]string, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	zones, err := uow.BatchRepository().ListZonesWithPending(ctx, 1)
	if err != nil {
		return nil, storageErr("list zones with pending batches", err)
	}
	return zones, nil
}

func (h *RunConsolidationCommandHandler) compactZone(ctx context.Context, zone string, report *ConsolidationReport) error {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	batchRepo := uow.BatchRepository()
	orderRepo := uow.OrderRepository()

	pending, err := batchRepo.ListPendingForUpdate(ctx, zone)
	if err != nil {
		return storageErr("lock pending batches", err)
	}
	if len(pending) < 2 {
		return nil
	}

	planned := make([]services.PlannedBatch, 0, len(pending))
	orders := make(map[kernel.UUID]*order.Order)
	for _, b := range pending {
		members, listErr := orderRepo.ListByBatch(ctx, b.ID())
		if listErr != nil {
			return storageErr("load members", listErr)
		}
		for _, member := range members {
			orders[member.ID()] = member
		}
		planned = append(planned, toPlanned(b, members))
	}

	plan := h.planner.PlanCompaction(planned)
	if plan.IsEmpty() {
		return nil
	}

	at := h.now()
	touched := make(map[kernel.UUID]bool)
	for _, move := range plan.Moves {
		o := orders[move.OrderID]
		if err = o.MoveToBatch(move.To, at); err != nil {
			return fmt.Errorf("move order %s: %w", move.OrderID, err)
		}
		if err = orderRepo.Update(ctx, o); err != nil {
			return storageErr("move order", err)
		}
		touched[move.To] = true
	}

	emptied := make(map[kernel.UUID]bool, len(plan.Emptied))
	for _, id := range plan.Emptied {
		if err = batchRepo.Delete(ctx, id); err != nil {
			return storageErr("delete absorbed batch", err)
		}
		emptied[id] = true
	}

	var events []batch.LifecycleEvent
	readied := 0
	for _, b := range pending {
		if emptied[b.ID()] || !touched[b.ID()] {
			continue
		}
		becameReady, syncErr := h.syncWeight(ctx, batchRepo, b, nil)
		if syncErr != nil {
			return syncErr
		}
		if becameReady {
			readied++
			events = append(events, b.Event(at))
		}
	}

	if err = uow.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}

	report.Merged += len(plan.Merges)
	report.Moved += len(plan.Moves)
	report.Deleted += len(plan.Emptied)
	report.Readied += readied
	publish(ctx, h.notifier, h.metrics, events)
	return nil
}

func (h *RunConsolidationCommandHandler) repair(ctx context.Context, report *ConsolidationReport) error {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	batchRepo := uow.BatchRepository()
	orderRepo := uow.OrderRepository()

	batches, err := batchRepo.ListRepairableForUpdate(ctx)
	if err != nil {
		return storageErr("lock repairable batches", err)
	}

	at := h.now()
	var (
		events []batch.LifecycleEvent
		pass   ConsolidationReport
	)
	for _, b := range batches {
		members, listErr := orderRepo.ListByBatch(ctx, b.ID())
		if listErr != nil {
			return storageErr("load members", listErr)
		}

		if b.Status().IsPreDriver() {
			if len(members) == 0 {
				if err = batchRepo.Delete(ctx, b.ID()); err != nil {
					return storageErr("delete empty batch", err)
				}
				pass.Deleted++
				continue
			}

			splitEvents, splitCount, splitErr := h.split(ctx, batchRepo, orderRepo, b, members, at)
			if splitErr != nil {
				return splitErr
			}
			pass.Split += splitCount
			events = append(events, splitEvents...)
		}

		becameReady, syncErr := h.syncWeight(ctx, batchRepo, b, &pass)
		if syncErr != nil {
			return syncErr
		}
		if becameReady {
			pass.Readied++
			events = append(events, b.Event(at))
		}
	}

	if err = uow.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}

	report.Split += pass.Split
	report.Deleted += pass.Deleted
	report.Corrected += pass.Corrected
	report.Readied += pass.Readied
	publish(ctx, h.notifier, h.metrics, events)
	return nil
}

// split peels the most recently added members off an over-capacity batch
// into new batches of the same zone. It returns the lifecycle events of the
// new batches and how many were created.
func (h *RunConsolidationCommandHandler) split(
	ctx context.Context,
	batchRepo ports.BatchRepository,
	orderRepo ports.OrderRepository,
	b *batch.Batch,
	members []*order.Order,
	at time.Time,
) ([]batch.LifecycleEvent, int, error) {
	groups := h.planner.PlanSplit(toPlanned(b, members), h.policy.MaxCapacity())
	if len(groups) == 0 {
		return nil, 0, nil
	}

	byID := make(map[kernel.UUID]*order.Order, len(members))
	for _, member := range members {
		byID[member.ID()] = member
	}

	var events []batch.LifecycleEvent
	for _, group := range groups {
		nb, err := h.createBatch(ctx, batchRepo, b.Zone(), at)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, nb.Event(at))

		for _, id := range group.OrderIDs {
			o := byID[id]
			if err = o.MoveToBatch(nb.ID(), at); err != nil {
				return nil, 0, fmt.Errorf("peel order %s: %w", id, err)
			}
			if err = orderRepo.Update(ctx, o); err != nil {
				return nil, 0, storageErr("peel order", err)
			}
		}

		becameReady, err := h.syncWeight(ctx, batchRepo, nb, nil)
		if err != nil {
			return nil, 0, err
		}
		if becameReady {
			events = append(events, nb.Event(at))
		}
	}

	h.logger.WarnContext(ctx, "over-capacity batch split",
		"batch_id", b.ID().String(), "zone", b.Zone(), "new_batches", len(groups))
	return events, len(groups), nil
}

func (h *RunConsolidationCommandHandler) createBatch(
	ctx context.Context,
	batchRepo ports.BatchRepository,
	zone string,
	at time.Time,
) (*batch.Batch, error) {
	for attempt := 0; ; attempt++ {
		nb, err := batch.NewBatch(kernel.NewUUID(), zone, h.policy, at)
		if err != nil {
			return nil, err
		}
		err = batchRepo.Create(ctx, nb)
		if err == nil {
			h.metrics.BatchCreated(zone)
			return nb, nil
		}
		if !errors.Is(err, ports.ErrBatchCreateConflict) {
			return nil, storageErr("create batch", err)
		}
		h.metrics.CreateConflict()
		if attempt > 0 {
			return nil, errs.NewTransientContentionError("create batch in zone "+zone, err)
		}
	}
}

// syncWeight overwrites the stored total of b with its recomputed member sum
// and re-evaluates readiness. Drift is counted on pass when given.
func (h *RunConsolidationCommandHandler) syncWeight(
	ctx context.Context,
	batchRepo ports.BatchRepository,
	b *batch.Batch,
	pass *ConsolidationReport,
) (bool, error) {
	total, err := batchRepo.RecomputeWeight(ctx, b.ID())
	if err != nil {
		return false, storageErr("recompute batch weight", err)
	}
	previous := b.TotalWeight()
	drifted, err := b.OverwriteWeight(total)
	if err != nil {
		return false, err
	}
	if drifted && pass != nil {
		pass.Corrected++
		h.logger.WarnContext(ctx, "batch weight drift corrected",
			"batch_id", b.ID().String(),
			"stored", previous.String(),
			"recomputed", total.String(),
		)
	}

	becameReady := b.EvaluateReadiness()
	if err = batchRepo.Update(ctx, b); err != nil {
		return false, storageErr("update batch", err)
	}
	return becameReady, nil
}

func (h *RunConsolidationCommandHandler) record(report ConsolidationReport) {
	h.metrics.ConsolidationChange(metrics.KindMerged, report.Merged)
	h.metrics.ConsolidationChange(metrics.KindMoved, report.Moved)
	h.metrics.ConsolidationChange(metrics.KindSplit, report.Split)
	h.metrics.ConsolidationChange(metrics.KindDeleted, report.Deleted)
	h.metrics.ConsolidationChange(metrics.KindCorrected, report.Corrected)
	h.metrics.ConsolidationChange(metrics.KindReadied, report.Readied)
}

// toPlanned projects a batch and its approved members for the planner.
func toPlanned(b *batch.Batch, members []*order.Order) services.PlannedBatch {
	planned := services.PlannedBatch{
		ID:          b.ID(),
		CreatedAt:   b.CreatedAt(),
		Sequence:    b.Sequence(),
		MaxCapacity: b.MaxCapacity(),
	}
	for _, member := range members {
		w, ok := member.Weight()
		if !member.IsApproved() || !ok {
			continue
		}
		var batchedAt time.Time
		if at := member.BatchedAt(); at != nil {
			batchedAt = *at
		}
		planned.Members = append(planned.Members, services.PlannedMember{
			OrderID:   member.ID(),
			Weight:    w,
			BatchedAt: batchedAt,
		})
	}
	return planned
}
