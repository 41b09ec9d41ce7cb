package commands_test

import (
	"context"
	"errors"
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderAssigner struct{ mock.Mock }

func (m *MockOrderAssigner) Handle(ctx context.Context, cmd commands.AssignOrderCommand) (commands.AssignOrderResult, error) {
	args := m.Called(ctx, cmd.OrderID())
	return args.Get(0).(commands.AssignOrderResult), args.Error(1)
}

func TestNewSweepUnassignedCommand(t *testing.T) {
	cmd, err := commands.NewSweepUnassignedCommand(50)
	require.NoError(t, err)
	assert.Equal(t, 50, cmd.Limit())

	_, err = commands.NewSweepUnassignedCommand(-1)
	require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
}

func TestSweepUnassignedCommandHandler_Handle(t *testing.T) {
	ctx := t.Context()

	assigned := approvedOrder(t, "san-roque", 100)
	deferred := approvedOrder(t, "san-roque", 100)
	failed := approvedOrder(t, "san-roque", 9000)

	orders := new(MockOrderRepository)
	uow := new(MockOrderUoW)
	factory := new(MockOrderUoWFactory)
	assigner := new(MockOrderAssigner)

	mock.InOrder(
		factory.On("Create").Return(uow).Once(),
		uow.On("Begin", ctx).Return(nil).Once(),
		uow.On("OrderRepository").Return(orders).Once(),
		orders.On("ListApprovedUnassigned", ctx, 10).Return([]*order.Order{assigned, deferred, failed}, nil).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)
	assigner.On("Handle", ctx, assigned.ID()).Return(commands.AssignOrderResult{OrderID: assigned.ID()}, nil).Once()
	assigner.On("Handle", ctx, deferred.ID()).
		Return(commands.AssignOrderResult{}, errs.NewTransientContentionError("acquire zone lock", nil)).Once()
	assigner.On("Handle", ctx, failed.ID()).Return(commands.AssignOrderResult{}, commands.ErrOrderExceedsCapacity).Once()

	cmd, err := commands.NewSweepUnassignedCommand(10)
	require.NoError(t, err)
	handler := commands.NewSweepUnassignedCommandHandler(factory, assigner, nil)
	report, err := handler.Handle(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, commands.SweepReport{Examined: 3, Assigned: 1, Deferred: 1, Failed: 1}, report)
	factory.AssertExpectations(t)
	uow.AssertExpectations(t)
	orders.AssertExpectations(t)
	assigner.AssertExpectations(t)
}

func TestSweepUnassignedCommandHandler_ListFailure(t *testing.T) {
	ctx := t.Context()

	orders := new(MockOrderRepository)
	uow := new(MockOrderUoW)
	factory := new(MockOrderUoWFactory)
	assigner := new(MockOrderAssigner)

	factory.On("Create").Return(uow).Once()
	uow.On("Begin", ctx).Return(nil).Once()
	uow.On("OrderRepository").Return(orders).Once()
	orders.On("ListApprovedUnassigned", ctx, 0).Return(nil, errors.New("connection reset")).Once()
	uow.On("Rollback", ctx).Return(nil).Once()

	cmd, _ := commands.NewSweepUnassignedCommand(0)
	handler := commands.NewSweepUnassignedCommandHandler(factory, assigner, nil)
	_, err := handler.Handle(ctx, cmd)

	require.ErrorIs(t, err, errs.ErrRepositoryUnavailable)
	assigner.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

// newRepeatingTxFixture serves every transaction of a handler that opens
// more than one.
func newRepeatingTxFixture() *txFixture {
	f := &txFixture{
		factory:  new(MockUoWFactory),
		uow:      new(MockUoW),
		orders:   new(MockOrderRepository),
		batches:  new(MockBatchRepository),
		notifier: new(MockNotifier),
	}
	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", mock.Anything).Return(nil)
	f.uow.On("Rollback", mock.Anything).Return(nil)
	f.uow.On("BatchRepository").Return(f.batches)
	f.uow.On("OrderRepository").Return(f.orders)
	return f
}

func TestReresolveZonesCommandHandler_Handle(t *testing.T) {
	f := newRepeatingTxFixture()

	unknown := pendingBatch(t, services.UnknownZone, 1500, testTime)
	resolvable := batchedOrder(t, unknown, 1000, testTime)
	stillUnknown := batchedOrder(t, unknown, 500, testTime)

	resolver := resolverFunc(func(addr order.Address) string {
		if addr.Line() == "12 Rizal St, San Roque" {
			return "san-roque"
		}
		return services.UnknownZone
	})
	rezoned, err := order.RestoreOrder(resolvable.ID(),
		order.NewAddress("", "12 Rizal St, San Roque", nil), resolvable.Items(), snapshotOf(resolvable))
	require.NoError(t, err)

	f.orders.On("ListInZone", mock.Anything, services.UnknownZone).Return([]*order.Order{rezoned, stillUnknown}, nil).Once()
	f.orders.On("Get", mock.Anything, rezoned.ID()).Return(rezoned, nil).Once()
	f.batches.On("GetForUpdate", mock.Anything, unknown.ID()).Return(unknown, nil).Once()
	f.orders.On("GetForUpdate", mock.Anything, rezoned.ID()).Return(rezoned, nil).Once()
	f.batches.On("SubtractWeight", mock.Anything, unknown.ID(), mock.Anything).Return(nil).Once()
	f.batches.On("Update", mock.Anything, unknown).Return(nil).Once()
	f.orders.On("Update", mock.Anything, rezoned).Return(nil).Once()
	f.uow.On("Commit", mock.Anything).Return(nil).Once()

	assigner := new(MockOrderAssigner)
	assigner.On("Handle", mock.Anything, rezoned.ID()).
		Return(commands.AssignOrderResult{OrderID: rezoned.ID(), Zone: "san-roque"}, nil).Once()

	handler := commands.NewReresolveZonesCommandHandler(f.factory, resolver, assigner, nil)
	report, err := handler.Handle(t.Context(), commands.NewReresolveZonesCommand())

	require.NoError(t, err)
	assert.Equal(t, commands.ReresolveReport{Examined: 2, Rezoned: 1, Reassigned: 1, Skipped: 1}, report)
	assert.Equal(t, "san-roque", rezoned.Zone())
	assert.False(t, rezoned.IsBatched())
	assert.Equal(t, "500", unknown.TotalWeight().String())
	assert.Equal(t, batch.StatusPending, unknown.Status())
	assigner.AssertExpectations(t)
	f.batches.AssertExpectations(t)
}

type resolverFunc func(order.Address) string

func (f resolverFunc) Resolve(addr order.Address) string { return f(addr) }

func snapshotOf(o *order.Order) order.Snapshot {
	w, _ := o.Weight()
	return order.Snapshot{
		Zone:      o.Zone(),
		Weight:    &w,
		Approval:  o.ApprovalState(),
		Delivery:  o.DeliveryState(),
		BatchRef:  o.BatchRef(),
		BatchedAt: o.BatchedAt(),
	}
}

func TestReresolveZonesCommandHandler_SkipsBatchWithDriver(t *testing.T) {
	f := newRepeatingTxFixture()

	assignedBatch := batchWithStatus(t, services.UnknownZone, 800, batch.StatusAssigned)
	o := batchedOrder(t, assignedBatch, 800, testTime)
	require.NoError(t, o.AdvanceDelivery(order.DeliveryAssigned))

	f.orders.On("ListInZone", mock.Anything, services.UnknownZone).Return([]*order.Order{o}, nil).Once()
	f.orders.On("Get", mock.Anything, o.ID()).Return(o, nil).Once()
	f.batches.On("GetForUpdate", mock.Anything, assignedBatch.ID()).Return(assignedBatch, nil).Once()
	f.orders.On("GetForUpdate", mock.Anything, o.ID()).Return(o, nil).Once()

	assigner := new(MockOrderAssigner)
	handler := commands.NewReresolveZonesCommandHandler(f.factory, stubResolver{zone: "lahug"}, assigner, nil)
	report, err := handler.Handle(t.Context(), commands.NewReresolveZonesCommand())

	require.NoError(t, err)
	assert.Equal(t, commands.ReresolveReport{Examined: 1, Skipped: 1}, report)
	assert.Equal(t, services.UnknownZone, o.Zone())
	f.uow.AssertNotCalled(t, "Commit", mock.Anything)
	assigner.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}
