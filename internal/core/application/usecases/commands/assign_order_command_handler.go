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

// AssignOrderResult describes where an order ended up.
type AssignOrderResult struct {
	OrderID kernel.UUID
	BatchID kernel.UUID
	Zone    string

	// CreatedBatch is set when no open batch of the zone could take the order.
	CreatedBatch bool

	// AlreadyAssigned is set when the order had a batch before the call.
	AlreadyAssigned bool

	// BecameReady is set when the order pushed its batch over the min threshold.
	BecameReady bool

	// Remaining is the batch capacity left after this order. Zero when
	// AlreadyAssigned.
	Remaining kernel.Weight
}

// AssignOrderCommandHandler is the batch assignment engine.
//
// The flow for one order:
//  1. freeze zone and weight in a short transaction of their own
//  2. take the zone lock, bounded by the locker's wait
//  3. in one transaction: re-check the order under a row lock, pick the
//     open batch with the least room that still fits or create one, reserve the weight with a
//     guarded update, attach the order and evaluate readiness
//  4. after commit, release the lock and publish lifecycle events
//
// Any failure after step 1 rolls back and leaves the order approved and
// unassigned. Contention and storage failures are retryable.
//
// Example:
//
//	handler := NewAssignOrderCommandHandler(uowFactory, locker, preparer, policy, notifier, m, logger)
//	cmd, _ := NewAssignOrderCommand(orderID)
//	result, err := handler.Handle(ctx, cmd)
type AssignOrderCommandHandler struct {
	uowFactory UoWFactory
	locker     ports.ZoneLocker
	preparer   OrderPreparer
	dispatcher services.OrderDispatcher
	policy     batch.CapacityPolicy
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        Clock
}

func NewAssignOrderCommandHandler(
	uowFactory UoWFactory,
	locker ports.ZoneLocker,
	preparer OrderPreparer,
	policy batch.CapacityPolicy,
	notifier ports.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) AssignOrderCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return AssignOrderCommandHandler{
		uowFactory: uowFactory,
		locker:     locker,
		preparer:   preparer,
		dispatcher: services.NewOrderDispatcher(),
		policy:     policy,
		notifier:   notifier,
		metrics:    m,
		logger:     logger.With("component", "assignment-engine"),
		now:        utcNow,
	}
}

// Handle assigns the order to a batch. Calling it again for an assigned order
// returns the current batch with AlreadyAssigned set.
func (h *AssignOrderCommandHandler) Handle(ctx context.Context, cmd AssignOrderCommand) (AssignOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return AssignOrderResult{}, err
	}

	started := time.Now()
	result, err := h.assign(ctx, cmd.OrderID())
	h.metrics.ObserveAssignment(assignmentOutcome(result, err), time.Since(started))

	switch {
	case err == nil:
		if !result.AlreadyAssigned {
			h.logger.DebugContext(ctx, "order assigned",
				"order_id", result.OrderID.String(),
				"batch_id", result.BatchID.String(),
				"zone", result.Zone,
				"created_batch", result.CreatedBatch,
				"remaining", result.Remaining.String(),
			)
		}
	case errs.IsRetryable(err):
		h.logger.WarnContext(ctx, "order assignment deferred",
			"order_id", cmd.OrderID().String(), "error", err)
	case errors.Is(err, errs.ErrCapacityExceeded):
		h.logger.ErrorContext(ctx, "capacity guard rejected a candidate batch",
			"order_id", cmd.OrderID().String(), "error", err)
	}

	return result, err
}

func (h *AssignOrderCommandHandler) assign(ctx context.Context, orderID kernel.UUID) (AssignOrderResult, error) {
	o, err := h.prepare(ctx, orderID)
	if err != nil {
		return AssignOrderResult{}, err
	}
	if o.IsBatched() {
		return alreadyAssigned(o), nil
	}

	w, _ := o.Weight()
	if !h.policy.Admits(w) {
		return AssignOrderResult{}, fmt.Errorf("%w: order %s weighs %s, max capacity is %s",
			ErrOrderExceedsCapacity, o.ID(), w, h.policy.MaxCapacity())
	}

	zone := o.Zone()
	release, err := h.locker.Acquire(ctx, zone)
	if err != nil {
		return AssignOrderResult{}, lockErr(zone, err)
	}
	defer func() {
		if releaseErr := release(context.WithoutCancel(ctx)); releaseErr != nil {
			h.logger.WarnContext(ctx, "zone lock release failed", "zone", zone, "error", releaseErr)
		}
	}()

	result, events, err := h.place(ctx, orderID)
	if err != nil {
		return AssignOrderResult{}, err
	}

	publish(ctx, h.notifier, h.metrics, events)
	return result, nil
}

// prepare loads the order and freezes its zone and weight.
func (h *AssignOrderCommandHandler) prepare(ctx context.Context, orderID kernel.UUID) (*order.Order, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orderRepo := uow.OrderRepository()
	o, err := orderRepo.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, storageErr("load order", err)
	}
	if !o.IsApproved() {
		return nil, fmt.Errorf("%w: order %s is %s", order.ErrOrderNotApproved, o.ID(), o.ApprovalState())
	}
	if o.IsBatched() {
		return o, nil
	}

	changed, err := h.preparer.Prepare(ctx, o)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	if err = orderRepo.Update(ctx, o); err != nil {
		return nil, storageErr("freeze order", err)
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, storageErr("commit", err)
	}
	return o, nil
}

// place runs under the zone lock.
func (h *AssignOrderCommandHandler) place(
	ctx context.Context,
	orderID kernel.UUID,
) (AssignOrderResult, []batch.LifecycleEvent, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return AssignOrderResult{}, nil, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orderRepo := uow.OrderRepository()
	batchRepo := uow.BatchRepository()

	o, err := orderRepo.GetForUpdate(ctx, orderID)
	if err != nil {
		return AssignOrderResult{}, nil, storageErr("lock order", err)
	}
	if o.IsBatched() {
		return alreadyAssigned(o), nil, nil
	}
	if err = o.CanJoinBatch(); err != nil {
		return AssignOrderResult{}, nil, err
	}

	w, _ := o.Weight()
	at := h.now()

	var events []batch.LifecycleEvent
	b, created, err := h.findOrCreate(ctx, batchRepo, o.Zone(), w, at)
	if err != nil {
		return AssignOrderResult{}, nil, err
	}
	if created {
		events = append(events, b.Event(at))
	}

	if err = batchRepo.AddWeight(ctx, b.ID(), w); err != nil {
		return AssignOrderResult{}, nil, storageErr("reserve batch capacity", err)
	}
	becameReady, err := h.dispatcher.Dispatch(o, b, at)
	if err != nil {
		return AssignOrderResult{}, nil, err
	}
	if becameReady {
		events = append(events, b.Event(at))
	}

	if err = batchRepo.Update(ctx, b); err != nil {
		return AssignOrderResult{}, nil, storageErr("update batch", err)
	}
	if err = orderRepo.Update(ctx, o); err != nil {
		return AssignOrderResult{}, nil, storageErr("update order", err)
	}
	if err = uow.Commit(ctx); err != nil {
		return AssignOrderResult{}, nil, storageErr("commit", err)
	}

	return AssignOrderResult{
		OrderID:      o.ID(),
		BatchID:      b.ID(),
		Zone:         b.Zone(),
		CreatedBatch: created,
		BecameReady:  becameReady,
		Remaining:    b.RemainingCapacity(),
	}, events, nil
}

// findOrCreate returns the candidate batch for w or a new one. A create that
// loses the (zone, sequence) race is followed by one more search and one more
// create; losing twice is transient contention.
func (h *AssignOrderCommandHandler) findOrCreate(
	ctx context.Context,
	repo ports.BatchRepository,
	zone string,
	w kernel.Weight,
	at time.Time,
) (*batch.Batch, bool, error) {
	for attempt := 0; ; attempt++ {
		candidate, err := repo.FindCandidate(ctx, zone, w)
		if err == nil {
			return candidate, false, nil
		}
		if !errors.Is(err, errs.ErrObjectNotFound) {
			return nil, false, storageErr("find candidate batch", err)
		}

		b, err := batch.NewBatch(kernel.NewUUID(), zone, h.policy, at)
		if err != nil {
			return nil, false, err
		}
		err = repo.Create(ctx, b)
		if err == nil {
			h.metrics.BatchCreated(zone)
			return b, true, nil
		}
		if !errors.Is(err, ports.ErrBatchCreateConflict) {
			return nil, false, storageErr("create batch", err)
		}

		h.metrics.CreateConflict()
		if attempt > 0 {
			return nil, false, errs.NewTransientContentionError("create batch in zone "+zone, err)
		}
		h.logger.DebugContext(ctx, "batch create conflict, searching again", "zone", zone)
	}
}

func lockErr(zone string, err error) error {
	switch {
	case errors.Is(err, ports.ErrZoneLockTimeout):
		return errs.NewTransientContentionError("acquire zone lock "+zone, err)
	case errs.IsRetryable(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errs.NewDependencyUnavailableError("acquire zone lock "+zone, err)
	}
}

func alreadyAssigned(o *order.Order) AssignOrderResult {
	return AssignOrderResult{
		OrderID:         o.ID(),
		BatchID:         *o.BatchRef(),
		Zone:            o.Zone(),
		AlreadyAssigned: true,
	}
}

func assignmentOutcome(result AssignOrderResult, err error) string {
	switch {
	case err == nil && result.AlreadyAssigned:
		return metrics.ResultAlreadyAssigned
	case err == nil:
		return metrics.ResultAssigned
	case errs.IsRetryable(err):
		return metrics.ResultRetryable
	default:
		return metrics.ResultFailed
	}
}
