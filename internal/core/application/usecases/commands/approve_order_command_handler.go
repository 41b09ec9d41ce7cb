package commands

import (
	"context"
	"log/slog"

	"dispatch/internal/core/domain/model/order"
)

type ApproveOrderResult struct {
	Approved   bool
	Assignment *AssignOrderResult
}

// ApproveOrderCommandHandler approves a pending order and immediately asks
// the assignment engine to place it. Approving an approved order only
// retries the assignment.
//
// The approval is committed before assignment starts. When assignment fails
// the error is returned with the order left approved and unassigned, so the
// unassigned sweep can pick it up.
type ApproveOrderCommandHandler struct {
	uowFactory OrderUoWFactory
	assigner   OrderAssigner
	logger     *slog.Logger
}

func NewApproveOrderCommandHandler(
	uowFactory OrderUoWFactory,
	assigner OrderAssigner,
	logger *slog.Logger,
) ApproveOrderCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return ApproveOrderCommandHandler{
		uowFactory: uowFactory,
		assigner:   assigner,
		logger:     logger.With("component", "order-intake"),
	}
}

func (h *ApproveOrderCommandHandler) Handle(ctx context.Context, cmd ApproveOrderCommand) (ApproveOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return ApproveOrderResult{}, err
	}

	approved, err := h.approve(ctx, cmd)
	if err != nil {
		return ApproveOrderResult{}, err
	}
	if approved {
		h.logger.InfoContext(ctx, "order approved", "order_id", cmd.OrderID().String())
	}

	assignCmd, err := NewAssignOrderCommand(cmd.OrderID())
	if err != nil {
		return ApproveOrderResult{Approved: approved}, err
	}
	assignment, err := h.assigner.Handle(ctx, assignCmd)
	if err != nil {
		return ApproveOrderResult{Approved: approved}, err
	}

	return ApproveOrderResult{Approved: approved, Assignment: &assignment}, nil
}

// approve reports whether this call moved the order to approved.
func (h *ApproveOrderCommandHandler) approve(ctx context.Context, cmd ApproveOrderCommand) (bool, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, storageErr("begin", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orderRepo := uow.OrderRepository()
	o, err := orderRepo.GetForUpdate(ctx, cmd.OrderID())
	if err != nil {
		return false, storageErr("lock order", err)
	}
	if o.ApprovalState() == order.ApprovalApproved {
		return false, nil
	}

	if err = o.Approve(); err != nil {
		return false, err
	}
	if err = orderRepo.Update(ctx, o); err != nil {
		return false, storageErr("update order", err)
	}
	if err = uow.Commit(ctx); err != nil {
		return false, storageErr("commit", err)
	}
	return true, nil
}
