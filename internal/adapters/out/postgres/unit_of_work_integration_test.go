package postgres_test

import (
	"context"
	"testing"
	"time"

	postgres_adapter "dispatch/internal/adapters/out/postgres"
	"dispatch/internal/adapters/out/postgres/pgtest"
	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// UnitOfWorkIntegrationTestSuite exercises the GORM Unit of Work against a
// real PostgreSQL database.
type UnitOfWorkIntegrationTestSuite struct {
	suite.Suite
	database *pgtest.Database
	factory  ports.UnitOfWorkFactory
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupSuite() {
	database, err := pgtest.Start(context.Background())
	suite.Require().NoError(err)
	suite.database = database
	suite.factory = postgres_adapter.NewGormUnitOfWorkFactory(database.DB)
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.database.Truncate())
}

func (suite *UnitOfWorkIntegrationTestSuite) TearDownSuite() {
	suite.Require().NoError(suite.database.Terminate(context.Background()))
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWorkFactory_Create() {
	uow1 := suite.factory.Create()
	uow2 := suite.factory.Create()

	suite.NotSame(uow1, uow2, "Factory should create separate instances")
	suite.NotNil(uow1.BatchRepository())
	suite.NotNil(uow1.OrderRepository())
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_TransactionLifecycle() {
	ctx := context.Background()
	uow := suite.factory.Create()

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Begin(ctx), "Multiple begin calls should be safe")
	suite.Require().NoError(uow.Commit(ctx))

	suite.ErrorIs(uow.Commit(ctx), gorm.ErrInvalidTransaction)
	suite.ErrorIs(uow.Rollback(ctx), gorm.ErrInvalidTransaction, "Rollback after commit is a no-op error")

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Rollback(ctx))
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_CommitPersistsBatchAndMember() {
	ctx := context.Background()
	uow := suite.factory.Create()
	suite.Require().NoError(uow.Begin(ctx))

	b, err := batch.NewBatch(kernel.NewUUID(), "san-roque", batch.DefaultCapacityPolicy(), time.Now().UTC())
	suite.Require().NoError(err)
	suite.Require().NoError(uow.BatchRepository().Create(ctx, b))

	o := suite.newApprovedOrder("san-roque", 1200)
	suite.Require().NoError(o.AttachToBatch(b.ID(), time.Now().UTC()))
	suite.Require().NoError(uow.OrderRepository().Add(ctx, o))
	suite.Require().NoError(uow.BatchRepository().AddWeight(ctx, b.ID(), kernel.MustWeight(1200)))

	suite.Equal(2, uow.(*postgres_adapter.GormUnitOfWork).TrackedCount())
	suite.Require().NoError(uow.Commit(ctx))

	fresh := suite.factory.Create()
	stored, err := fresh.BatchRepository().Get(ctx, b.ID())
	suite.Require().NoError(err)
	suite.Equal("1200", stored.TotalWeight().String())

	members, err := fresh.OrderRepository().ListByBatch(ctx, b.ID())
	suite.Require().NoError(err)
	suite.Require().Len(members, 1)
	suite.Equal(o.ID(), members[0].ID())
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_RollbackDiscardsEverything() {
	ctx := context.Background()
	uow := suite.factory.Create()
	suite.Require().NoError(uow.Begin(ctx))

	b, err := batch.NewBatch(kernel.NewUUID(), "san-roque", batch.DefaultCapacityPolicy(), time.Now().UTC())
	suite.Require().NoError(err)
	suite.Require().NoError(uow.BatchRepository().Create(ctx, b))

	o := suite.newApprovedOrder("san-roque", 300)
	suite.Require().NoError(uow.OrderRepository().Add(ctx, o))

	suite.Require().NoError(uow.Rollback(ctx))

	fresh := suite.factory.Create()
	_, err = fresh.BatchRepository().Get(ctx, b.ID())
	suite.ErrorIs(err, errs.ErrObjectNotFound)
	_, err = fresh.OrderRepository().Get(ctx, o.ID())
	suite.ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_IsolatedUntilCommit() {
	ctx := context.Background()
	writer := suite.factory.Create()
	suite.Require().NoError(writer.Begin(ctx))
	defer writer.Rollback(ctx)

	o := suite.newApprovedOrder("san-roque", 300)
	suite.Require().NoError(writer.OrderRepository().Add(ctx, o))

	reader := suite.factory.Create()
	unassigned, err := reader.OrderRepository().ListApprovedUnassigned(ctx, 10)
	suite.Require().NoError(err)
	suite.Empty(unassigned)

	suite.Require().NoError(writer.Commit(ctx))

	unassigned, err = reader.OrderRepository().ListApprovedUnassigned(ctx, 10)
	suite.Require().NoError(err)
	suite.Len(unassigned, 1)
}

func (suite *UnitOfWorkIntegrationTestSuite) newApprovedOrder(zone string, weight float64) *order.Order {
	item, err := order.NewLineItem(kernel.NewUUID(), 1)
	suite.Require().NoError(err)
	o, err := order.NewOrder(kernel.NewUUID(), order.NewAddress(zone, "", nil), []order.LineItem{item})
	suite.Require().NoError(err)
	suite.Require().NoError(o.Approve())
	suite.Require().NoError(o.FreezeZone(zone))
	suite.Require().NoError(o.FreezeWeight(kernel.MustWeight(weight)))
	return o
}

func TestUnitOfWorkIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(UnitOfWorkIntegrationTestSuite))
}
