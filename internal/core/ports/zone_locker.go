package ports

import (
	"context"
	"errors"
)

// ErrZoneLockTimeout is returned when a zone lock could not be acquired within
// the configured wait.
var ErrZoneLockTimeout = errors.New("zone lock timeout")

// ReleaseFunc gives a held zone lock back. Calling it more than once is a
// no-op.
type ReleaseFunc func(ctx context.Context) error

// ZoneLocker serialises find-or-create of batches per zone. Different zones
// never block each other.
type ZoneLocker interface {
	Acquire(ctx context.Context, zone string) (ReleaseFunc, error)
}
