package commands

import (
	"context"
	"log/slog"

	"dispatch/internal/core/domain/model/order"
)

// CreateOrderCommandHandler stores new orders in the pending approval state.
// Nothing is resolved or weighed here; that happens on first assignment.
type CreateOrderCommandHandler struct {
	uowFactory OrderUoWFactory
	logger     *slog.Logger
}

func NewCreateOrderCommandHandler(uowFactory OrderUoWFactory, logger *slog.Logger) CreateOrderCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return CreateOrderCommandHandler{
		uowFactory: uowFactory,
		logger:     logger.With("component", "order-intake"),
	}
}

func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	o, err := order.NewOrder(cmd.OrderID(), cmd.Address(), cmd.Items())
	if err != nil {
		return err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return storageErr("begin", err)
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err = uow.OrderRepository().Add(ctx, o); err != nil {
		return storageErr("add order", err)
	}

	if err = uow.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}

	h.logger.InfoContext(ctx, "order created", "order_id", o.ID().String(), "items", len(cmd.Items()))
	return nil
}
