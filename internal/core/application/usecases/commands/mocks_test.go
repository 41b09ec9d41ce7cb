package commands_test

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBatchRepository struct{ mock.Mock }

func (m *MockBatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBatchRepository) Update(ctx context.Context, b *batch.Batch) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBatchRepository) Delete(ctx context.Context, id kernel.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBatchRepository) Get(ctx context.Context, id kernel.UUID) (*batch.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*batch.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) FindCandidate(ctx context.Context, zone string, w kernel.Weight) (*batch.Batch, error) {
	args := m.Called(ctx, zone, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) AddWeight(ctx context.Context, id kernel.UUID, delta kernel.Weight) error {
	return m.Called(ctx, id, delta).Error(0)
}

func (m *MockBatchRepository) SubtractWeight(ctx context.Context, id kernel.UUID, delta kernel.Weight) error {
	return m.Called(ctx, id, delta).Error(0)
}

func (m *MockBatchRepository) RecomputeWeight(ctx context.Context, id kernel.UUID) (kernel.Weight, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(kernel.Weight), args.Error(1)
}

func (m *MockBatchRepository) ListPendingForUpdate(ctx context.Context, zone string) ([]*batch.Batch, error) {
	args := m.Called(ctx, zone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) ListZonesWithPending(ctx context.Context, minCount int) ([]string, error) {
	args := m.Called(ctx, minCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBatchRepository) ListRepairableForUpdate(ctx context.Context) ([]*batch.Batch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) ListReady(ctx context.Context, limit int) ([]*batch.Batch, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.Batch), args.Error(1)
}

type MockOrderRepository struct{ mock.Mock }

func (m *MockOrderRepository) Add(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByBatch(ctx context.Context, batchID kernel.UUID) ([]*order.Order, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListApprovedUnassigned(ctx context.Context, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListInZone(ctx context.Context, zone string) ([]*order.Order, error) {
	args := m.Called(ctx, zone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

type MockUoW struct{ mock.Mock }

func (m *MockUoW) Begin(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockUoW) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockUoW) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockUoW) BatchRepository() ports.BatchRepository {
	return m.Called().Get(0).(ports.BatchRepository)
}

func (m *MockUoW) OrderRepository() ports.OrderRepository {
	return m.Called().Get(0).(ports.OrderRepository)
}

type MockUoWFactory struct{ mock.Mock }

func (m *MockUoWFactory) Create() commands.UoW {
	return m.Called().Get(0).(commands.UoW)
}

type MockOrderUoW struct{ mock.Mock }

func (m *MockOrderUoW) Begin(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockOrderUoW) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockOrderUoW) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockOrderUoW) OrderRepository() ports.OrderRepository {
	return m.Called().Get(0).(ports.OrderRepository)
}

type MockOrderUoWFactory struct{ mock.Mock }

func (m *MockOrderUoWFactory) Create() commands.OrderUoW {
	return m.Called().Get(0).(commands.OrderUoW)
}

type MockZoneLocker struct {
	mock.Mock
	released int
}

func (m *MockZoneLocker) Acquire(ctx context.Context, zone string) (ports.ReleaseFunc, error) {
	args := m.Called(ctx, zone)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}

type MockNotifier struct {
	mock.Mock
	events []batch.LifecycleEvent
}

func (m *MockNotifier) Notify(_ context.Context, event batch.LifecycleEvent) {
	m.events = append(m.events, event)
}

type MockProductCatalog struct{ mock.Mock }

func (m *MockProductCatalog) UnitWeights(ctx context.Context, ids []kernel.UUID) (map[kernel.UUID]kernel.Weight, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[kernel.UUID]kernel.Weight), args.Error(1)
}

type MockDriverRoster struct{ mock.Mock }

func (m *MockDriverRoster) PickAvailableDriver(ctx context.Context, zone string) (kernel.UUID, error) {
	args := m.Called(ctx, zone)
	return args.Get(0).(kernel.UUID), args.Error(1)
}

func (m *MockDriverRoster) ReturnDriver(ctx context.Context, zone string, driverID kernel.UUID) error {
	return m.Called(ctx, zone, driverID).Error(0)
}

type stubResolver struct{ zone string }

func (r stubResolver) Resolve(order.Address) string { return r.zone }

// fixtures

var testTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newOrder(t *testing.T, zone string) *order.Order {
	t.Helper()
	item, err := order.NewLineItem(kernel.NewUUID(), 2)
	require.NoError(t, err)
	o, err := order.NewOrder(kernel.NewUUID(), order.NewAddress(zone, "", nil), []order.LineItem{item})
	require.NoError(t, err)
	return o
}

func approvedOrder(t *testing.T, zone string, weight float64) *order.Order {
	t.Helper()
	o := newOrder(t, zone)
	require.NoError(t, o.Approve())
	require.NoError(t, o.FreezeZone(zone))
	require.NoError(t, o.FreezeWeight(kernel.MustWeight(weight)))
	return o
}

func batchedOrder(t *testing.T, b *batch.Batch, weight float64, at time.Time) *order.Order {
	t.Helper()
	o := approvedOrder(t, b.Zone(), weight)
	require.NoError(t, o.AttachToBatch(b.ID(), at))
	return o
}

func pendingBatch(t *testing.T, zone string, weight float64, createdAt time.Time) *batch.Batch {
	t.Helper()
	b, err := batch.NewBatch(kernel.NewUUID(), zone, batch.DefaultCapacityPolicy(), createdAt)
	require.NoError(t, err)
	require.NoError(t, b.SetSequence(1))
	if weight > 0 {
		require.NoError(t, b.AddWeight(kernel.MustWeight(weight)))
	}
	return b
}

func batchWithStatus(t *testing.T, zone string, weight float64, status batch.Status) *batch.Batch {
	t.Helper()
	var driver *kernel.UUID
	if status.HasDriver() {
		id := kernel.NewUUID()
		driver = &id
	}
	b, err := batch.RestoreBatch(kernel.NewUUID(), zone, batch.Snapshot{
		Sequence:     1,
		Status:       status,
		TotalWeight:  kernel.MustWeight(weight),
		MinThreshold: batch.DefaultMinThreshold,
		MaxCapacity:  batch.DefaultMaxCapacity,
		DriverRef:    driver,
		CreatedAt:    testTime,
	})
	require.NoError(t, err)
	return b
}
