package ports

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
)

// ErrNoDriverAvailable is returned when the roster has nobody free in a zone.
var ErrNoDriverAvailable = errors.New("no driver available")

// DriverRoster hands out available drivers. A picked driver is no longer
// available to other callers.
type DriverRoster interface {
	PickAvailableDriver(ctx context.Context, zone string) (kernel.UUID, error)

	// ReturnDriver puts a picked driver back, used when the transition that
	// picked it could not be committed.
	ReturnDriver(ctx context.Context, zone string, driverID kernel.UUID) error
}

// DriverRegistry lets operators put drivers on shift in a zone.
type DriverRegistry interface {
	Register(ctx context.Context, zone string, driverIDs ...kernel.UUID) error
	Available(ctx context.Context, zone string) (int64, error)
}
