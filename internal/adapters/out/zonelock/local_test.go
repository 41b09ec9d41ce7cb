package zonelock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_AcquireRelease(t *testing.T) {
	locker := NewLocal(time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, []string{"north"}, locker.Held())

	require.NoError(t, release(ctx))
	assert.Empty(t, locker.Held())

	// second release is a no-op and must not block
	require.NoError(t, release(ctx))

	release, err = locker.Acquire(ctx, "north")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestLocal_TimesOutWhileHeld(t *testing.T) {
	locker := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "north")
	require.NoError(t, err)
	defer release(ctx)

	_, err = locker.Acquire(ctx, "north")
	assert.ErrorIs(t, err, ports.ErrZoneLockTimeout)
}

func TestLocal_ZonesAreIndependent(t *testing.T) {
	locker := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	releaseNorth, err := locker.Acquire(ctx, "north")
	require.NoError(t, err)
	defer releaseNorth(ctx)

	releaseSouth, err := locker.Acquire(ctx, "south")
	require.NoError(t, err)
	require.NoError(t, releaseSouth(ctx))
}

func TestLocal_HonoursCancelledContext(t *testing.T) {
	locker := NewLocal(0)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "north")
	require.NoError(t, err)
	defer release(ctx)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = locker.Acquire(cancelled, "north")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_MutualExclusion(t *testing.T) {
	locker := NewLocal(5 * time.Second)
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "north")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			_ = release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}
