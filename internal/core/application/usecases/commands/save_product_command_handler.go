package commands

import (
	"context"
	"log/slog"

	"dispatch/internal/core/ports"
)

type SaveProductCommandHandler struct {
	registry ports.ProductRegistry
	logger   *slog.Logger
}

func NewSaveProductCommandHandler(registry ports.ProductRegistry, logger *slog.Logger) SaveProductCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return SaveProductCommandHandler{
		registry: registry,
		logger:   logger.With("component", "product-catalog"),
	}
}

// Handle upserts the product. Frozen order weights are not recomputed.
func (h *SaveProductCommandHandler) Handle(ctx context.Context, cmd SaveProductCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if err := h.registry.Save(ctx, cmd.ProductID(), cmd.Name(), cmd.UnitWeight()); err != nil {
		return storageErr("save product", err)
	}

	attrs := []any{"product_id", cmd.ProductID().String(), "name", cmd.Name()}
	if w := cmd.UnitWeight(); w != nil {
		attrs = append(attrs, "unit_weight", w.String())
	}
	h.logger.InfoContext(ctx, "product saved", attrs...)
	return nil
}
