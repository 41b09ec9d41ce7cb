// Package zonelock implements ports.ZoneLocker for a single process and for
// a fleet of processes sharing Redis.
package zonelock

import (
	"context"
	"errors"
	"sync"
	"time"

	"dispatch/internal/core/ports"

	"github.com/puzpuzpuz/xsync/v4"
)

var _ ports.ZoneLocker = (*Local)(nil)

// Local is an in-process lock table. Each zone gets a one-slot channel that
// acts as a mutex which can be waited on with a context.
type Local struct {
	locks *xsync.Map[string, chan struct{}]
	wait  time.Duration
}

// NewLocal builds a lock table. wait bounds how long Acquire blocks; zero
// waits until the context is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		locks: xsync.NewMap[string, chan struct{}](),
		wait:  wait,
	}
}

func (l *Local) Acquire(ctx context.Context, zone string) (ports.ReleaseFunc, error) {
	slot, _ := l.locks.LoadOrStore(zone, make(chan struct{}, 1))

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ports.ErrZoneLockTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-slot })
		return nil
	}, nil
}

// Held reports the zones whose lock is currently taken.
func (l *Local) Held() []string {
	var zones []string
	l.locks.Range(func(zone string, slot chan struct{}) bool {
		if len(slot) > 0 {
			zones = append(zones, zone)
		}
		return true
	})
	return zones
}
