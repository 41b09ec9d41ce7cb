package commands

import (
	"context"
	"log/slog"

	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// RegisterDriversCommandHandler adds drivers to the available pool of a zone
// and reports how many are free afterwards.
type RegisterDriversCommandHandler struct {
	registry ports.DriverRegistry
	logger   *slog.Logger
}

func NewRegisterDriversCommandHandler(registry ports.DriverRegistry, logger *slog.Logger) RegisterDriversCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return RegisterDriversCommandHandler{
		registry: registry,
		logger:   logger.With("component", "driver-roster"),
	}
}

func (h *RegisterDriversCommandHandler) Handle(ctx context.Context, cmd RegisterDriversCommand) (int64, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	if err := h.registry.Register(ctx, cmd.Zone(), cmd.DriverIDs()...); err != nil {
		return 0, errs.NewDependencyUnavailableError("register drivers in zone "+cmd.Zone(), err)
	}

	available, err := h.registry.Available(ctx, cmd.Zone())
	if err != nil {
		return 0, errs.NewDependencyUnavailableError("count drivers in zone "+cmd.Zone(), err)
	}

	h.logger.InfoContext(ctx, "drivers registered",
		"zone", cmd.Zone(),
		"registered", len(cmd.DriverIDs()),
		"available", available,
	)
	return available, nil
}
