package services_test

import (
	"testing"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedOrder(t *testing.T, zone string, weight float64) *order.Order {
	t.Helper()
	o, err := order.NewOrder(kernel.NewUUID(), order.NewAddress(zone, "", nil), nil)
	require.NoError(t, err)
	require.NoError(t, o.Approve())
	require.NoError(t, o.FreezeZone(zone))
	require.NoError(t, o.FreezeWeight(kernel.MustWeight(weight)))
	return o
}

func pendingBatch(t *testing.T, zone string, createdAt time.Time, weight float64) *batch.Batch {
	t.Helper()
	b, err := batch.NewBatch(kernel.NewUUID(), zone, batch.DefaultCapacityPolicy(), createdAt)
	require.NoError(t, err)
	if weight > 0 {
		require.NoError(t, b.AddWeight(kernel.MustWeight(weight)))
	}
	return b
}

func TestOrderDispatcher_Dispatch(t *testing.T) {
	dispatcher := services.NewOrderDispatcher()
	now := time.Now().UTC()

	t.Run("third order of 1200 makes the batch ready", func(t *testing.T) {
		b := pendingBatch(t, "Zone-A", now, 2400)
		o := approvedOrder(t, "Zone-A", 1200)

		ready, err := dispatcher.Dispatch(o, b, now)

		require.NoError(t, err)
		assert.True(t, ready)
		assert.Equal(t, "3600", b.TotalWeight().String())
		assert.Equal(t, batch.StatusReadyForDelivery, b.Status())
		assert.True(t, o.BelongsTo(b.ID()))
	})

	t.Run("capacity error leaves both untouched", func(t *testing.T) {
		b := pendingBatch(t, "Zone-A", now, 3600)
		o := approvedOrder(t, "Zone-A", 2000)

		_, err := dispatcher.Dispatch(o, b, now)

		require.ErrorIs(t, err, errs.ErrCapacityExceeded)
		assert.Equal(t, "3600", b.TotalWeight().String())
		assert.False(t, o.IsBatched())
	})

	t.Run("zones must match", func(t *testing.T) {
		b := pendingBatch(t, "Zone-B", now, 0)
		o := approvedOrder(t, "Zone-A", 10)

		_, err := dispatcher.Dispatch(o, b, now)

		require.ErrorIs(t, err, services.ErrZoneMismatch)
		assert.True(t, b.TotalWeight().IsZero())
	})

	t.Run("already batched order is refused before weight changes", func(t *testing.T) {
		b := pendingBatch(t, "Zone-A", now, 0)
		o := approvedOrder(t, "Zone-A", 10)
		require.NoError(t, o.AttachToBatch(kernel.NewUUID(), now))

		_, err := dispatcher.Dispatch(o, b, now)

		require.ErrorIs(t, err, order.ErrOrderAlreadyBatched)
		assert.True(t, b.TotalWeight().IsZero())
	})
}

func TestOrderDispatcher_SelectCandidate(t *testing.T) {
	dispatcher := services.NewOrderDispatcher()
	now := time.Now().UTC()

	t.Run("prefers the least remaining capacity that fits", func(t *testing.T) {
		tooFull := pendingBatch(t, "Zone-A", now.Add(-time.Hour), 4900)
		older := pendingBatch(t, "Zone-A", now, 1000)
		newer := pendingBatch(t, "Zone-A", now.Add(time.Minute), 3000)

		got, err := dispatcher.SelectCandidate(approvedOrder(t, "Zone-A", 500), []*batch.Batch{older, tooFull, newer})

		require.NoError(t, err)
		assert.True(t, got.IsEqual(newer))
		assert.Equal(t, "2000", got.RemainingCapacity().String())
	})

	t.Run("oldest wins when remaining capacity ties", func(t *testing.T) {
		older := pendingBatch(t, "Zone-A", now, 2500)
		newer := pendingBatch(t, "Zone-A", now.Add(time.Minute), 2500)

		got, err := dispatcher.SelectCandidate(approvedOrder(t, "Zone-A", 100), []*batch.Batch{newer, older})

		require.NoError(t, err)
		assert.True(t, got.IsEqual(older))
	})

	t.Run("falls back to a roomier batch when the tight one is full", func(t *testing.T) {
		tight := pendingBatch(t, "Zone-A", now, 4000)
		roomy := pendingBatch(t, "Zone-A", now.Add(time.Minute), 1000)

		got, err := dispatcher.SelectCandidate(approvedOrder(t, "Zone-A", 1500), []*batch.Batch{tight, roomy})

		require.NoError(t, err)
		assert.True(t, got.IsEqual(roomy))
	})

	t.Run("ignores other zones and closed batches", func(t *testing.T) {
		other := pendingBatch(t, "Zone-B", now, 0)
		closed := pendingBatch(t, "Zone-A", now, 0)
		require.NoError(t, closed.Cancel())

		_, err := dispatcher.SelectCandidate(approvedOrder(t, "Zone-A", 10), []*batch.Batch{other, closed})

		require.ErrorIs(t, err, services.ErrNoCandidateBatch)
	})
}
