package batch_test

import (
	"testing"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatch(t *testing.T, zone string) *batch.Batch {
	t.Helper()
	b, err := batch.NewBatch(kernel.NewUUID(), zone, batch.DefaultCapacityPolicy(), time.Now().UTC())
	require.NoError(t, err)
	return b
}

func TestNewBatch(t *testing.T) {
	t.Run("should create empty pending batch", func(t *testing.T) {
		b := newBatch(t, "Zone-A")

		require.NoError(t, b.Validate())
		assert.Equal(t, "Zone-A", b.Zone())
		assert.Equal(t, batch.StatusPending, b.Status())
		assert.True(t, b.TotalWeight().IsZero())
		assert.Equal(t, "3500", b.MinThreshold().String())
		assert.Equal(t, "5000", b.MaxCapacity().String())
		assert.Nil(t, b.Driver())
		assert.True(t, b.IsOpen())
	})

	t.Run("should fail without zone and policy", func(t *testing.T) {
		b, err := batch.NewBatch(kernel.NewUUID(), " ", batch.CapacityPolicy{}, time.Now())

		require.Error(t, err)
		assert.Nil(t, b)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
		require.ErrorIs(t, err, batch.ErrCapacityPolicyIsNotConstructed)
	})

	t.Run("zero value is not constructed", func(t *testing.T) {
		require.ErrorIs(t, (&batch.Batch{}).Validate(), batch.ErrBatchIsNotConstructed)
	})
}

func TestBatch_AddWeight(t *testing.T) {
	t.Run("three orders reach the threshold", func(t *testing.T) {
		b := newBatch(t, "Zone-A")

		for range 3 {
			require.NoError(t, b.AddWeight(kernel.MustWeight(1200)))
		}

		assert.Equal(t, "3600", b.TotalWeight().String())
		assert.True(t, b.EvaluateReadiness())
		assert.Equal(t, batch.StatusReadyForDelivery, b.Status())
		assert.False(t, b.EvaluateReadiness())
	})

	t.Run("exceeding capacity is refused", func(t *testing.T) {
		b := newBatch(t, "Zone-A")
		require.NoError(t, b.AddWeight(kernel.MustWeight(3600)))

		err := b.AddWeight(kernel.MustWeight(2000))

		require.ErrorIs(t, err, errs.ErrCapacityExceeded)
		assert.Equal(t, "3600", b.TotalWeight().String())
		assert.False(t, b.CanFit(kernel.MustWeight(2000)))
		assert.True(t, b.CanFit(kernel.MustWeight(1400)))
		assert.Equal(t, "1400", b.RemainingCapacity().String())
	})

	t.Run("only open batches take weight", func(t *testing.T) {
		b := newBatch(t, "Zone-A")
		require.NoError(t, b.AddWeight(kernel.MustWeight(4000)))
		require.True(t, b.EvaluateReadiness())

		require.ErrorIs(t, b.AddWeight(kernel.MustWeight(1)), batch.ErrBatchNotOpen)
	})
}

func TestBatch_RemoveWeight(t *testing.T) {
	b := newBatch(t, "Zone-A")
	require.NoError(t, b.AddWeight(kernel.MustWeight(100)))

	require.NoError(t, b.RemoveWeight(kernel.MustWeight(40)))
	assert.Equal(t, "60", b.TotalWeight().String())
	require.Error(t, b.RemoveWeight(kernel.MustWeight(61)))
}

func TestBatch_OverwriteWeight(t *testing.T) {
	b := newBatch(t, "Zone-A")
	require.NoError(t, b.AddWeight(kernel.MustWeight(4500)))

	drifted, err := b.OverwriteWeight(kernel.MustWeight(4000))
	require.NoError(t, err)
	assert.True(t, drifted)
	assert.Equal(t, "4000", b.TotalWeight().String())

	drifted, err = b.OverwriteWeight(kernel.MustWeight(4000))
	require.NoError(t, err)
	assert.False(t, drifted)

	_, err = b.OverwriteWeight(kernel.Weight{})
	require.Error(t, err)
}

func TestBatch_Lifecycle(t *testing.T) {
	b := newBatch(t, "Zone-A")
	driver := kernel.NewUUID()

	require.ErrorIs(t, b.AssignDriver(driver), batch.ErrInvalidTransition)

	require.NoError(t, b.AddWeight(kernel.MustWeight(3500)))
	require.True(t, b.EvaluateReadiness())
	require.ErrorIs(t, b.StartDelivery(), batch.ErrInvalidTransition)

	require.NoError(t, b.AssignDriver(driver))
	assert.True(t, b.Driver().IsEqual(driver))
	require.ErrorIs(t, b.RemoveWeight(kernel.MustWeight(1)), batch.ErrBatchHasDriver)
	require.ErrorIs(t, b.Cancel(), batch.ErrInvalidTransition)

	require.NoError(t, b.StartDelivery())
	require.NoError(t, b.MarkDelivered())
	assert.Equal(t, batch.StatusDelivered, b.Status())
	assert.True(t, b.Status().IsTerminal())
}

func TestBatch_Cancel(t *testing.T) {
	b := newBatch(t, "Zone-A")

	require.NoError(t, b.Cancel())
	assert.Equal(t, batch.StatusCancelled, b.Status())
	require.ErrorIs(t, b.Cancel(), batch.ErrInvalidTransition)
}

func TestBatch_SetSequence(t *testing.T) {
	b := newBatch(t, "Zone-A")

	require.Error(t, b.SetSequence(0))
	require.NoError(t, b.SetSequence(7))
	assert.Equal(t, int64(7), b.Sequence())
}

func TestBatch_OlderThan(t *testing.T) {
	now := time.Now()
	older, _ := batch.NewBatch(kernel.NewUUID(), "Zone-A", batch.DefaultCapacityPolicy(), now)
	newer, _ := batch.NewBatch(kernel.NewUUID(), "Zone-A", batch.DefaultCapacityPolicy(), now.Add(time.Second))

	assert.True(t, older.OlderThan(newer))
	assert.False(t, newer.OlderThan(older))

	tieA, _ := batch.NewBatch(kernel.NewUUID(), "Zone-A", batch.DefaultCapacityPolicy(), now)
	tieB, _ := batch.NewBatch(kernel.NewUUID(), "Zone-A", batch.DefaultCapacityPolicy(), now)
	require.NoError(t, tieA.SetSequence(1))
	require.NoError(t, tieB.SetSequence(2))
	assert.True(t, tieA.OlderThan(tieB))
}

func TestRestoreBatch(t *testing.T) {
	driver := kernel.NewUUID()

	t.Run("restores assigned batch", func(t *testing.T) {
		b, err := batch.RestoreBatch(kernel.NewUUID(), "Zone-A", batch.Snapshot{
			Sequence: 3, Status: batch.StatusAssigned, TotalWeight: kernel.MustWeight(3600),
			MinThreshold: batch.DefaultMinThreshold, MaxCapacity: batch.DefaultMaxCapacity,
			DriverRef: &driver, CreatedAt: time.Now(),
		})

		require.NoError(t, err)
		assert.Equal(t, int64(3), b.Sequence())
		assert.True(t, b.Driver().IsEqual(driver))
	})

	t.Run("driver without assigned status is refused", func(t *testing.T) {
		_, err := batch.RestoreBatch(kernel.NewUUID(), "Zone-A", batch.Snapshot{
			Sequence: 1, Status: batch.StatusPending, TotalWeight: kernel.ZeroWeight(),
			MinThreshold: batch.DefaultMinThreshold, MaxCapacity: batch.DefaultMaxCapacity,
			DriverRef: &driver,
		})
		require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})

	t.Run("invalid limits are refused", func(t *testing.T) {
		_, err := batch.RestoreBatch(kernel.NewUUID(), "Zone-A", batch.Snapshot{
			Status: batch.StatusPending, TotalWeight: kernel.ZeroWeight(),
			MinThreshold: kernel.MustWeight(6000), MaxCapacity: batch.DefaultMaxCapacity,
		})
		require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
	})
}

func TestBatch_Event(t *testing.T) {
	b := newBatch(t, "Zone-A")
	at := time.Now()

	ev := b.Event(at)

	assert.Equal(t, batch.EventCreated, ev.Type)
	assert.True(t, ev.BatchID.IsEqual(b.ID()))
	assert.Equal(t, "Zone-A", ev.Zone)
	assert.Equal(t, at, ev.OccurredAt)

	require.NoError(t, b.Cancel())
	assert.Equal(t, batch.EventCancelled, b.Event(at).Type)
}
