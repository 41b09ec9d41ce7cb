package commands_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dispatch/internal/adapters/out/notifier"
	postgres_adapter "dispatch/internal/adapters/out/postgres"
	"dispatch/internal/adapters/out/postgres/batchrepo"
	"dispatch/internal/adapters/out/postgres/pgtest"
	"dispatch/internal/adapters/out/postgres/productrepo"
	"dispatch/internal/adapters/out/zonelock"
	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type pgUoWFactory struct {
	factory *postgres_adapter.GormUnitOfWorkFactory
}

func (f pgUoWFactory) Create() commands.UoW {
	return f.factory.Create()
}

type AssignmentIntegrationTestSuite struct {
	suite.Suite
	database *pgtest.Database
	uow      pgUoWFactory
	catalog  *productrepo.GormProductCatalog
	preparer commands.OrderPreparer
}

func (suite *AssignmentIntegrationTestSuite) SetupSuite() {
	database, err := pgtest.Start(context.Background())
	suite.Require().NoError(err)
	suite.database = database
	suite.uow = pgUoWFactory{factory: postgres_adapter.NewGormUnitOfWorkFactory(database.DB)}
	suite.catalog = productrepo.NewGormProductCatalog(database.DB)

	resolver, err := services.NewZoneResolver(nil)
	suite.Require().NoError(err)
	suite.preparer = commands.NewOrderPreparer(resolver, suite.catalog)
}

func (suite *AssignmentIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.database.Truncate())
}

func (suite *AssignmentIntegrationTestSuite) TearDownSuite() {
	suite.Require().NoError(suite.database.Terminate(context.Background()))
}

func (suite *AssignmentIntegrationTestSuite) assigner(policy batch.CapacityPolicy) *commands.AssignOrderCommandHandler {
	logger := slog.Default()
	h := commands.NewAssignOrderCommandHandler(
		suite.uow,
		zonelock.NewLocal(5*time.Second),
		suite.preparer,
		policy,
		notifier.NewDiscard(logger),
		metrics.New(metrics.DefaultConfig()),
		logger,
	)
	return &h
}

// approvedOrder stores an approved order of zone holding a single product
// whose unit weight is weight.
func (suite *AssignmentIntegrationTestSuite) approvedOrder(zone string, weight float64) kernel.UUID {
	ctx := context.Background()

	productID := kernel.NewUUID()
	unit := kernel.MustWeight(weight)
	suite.Require().NoError(suite.catalog.Save(ctx, productID, "crate", &unit))

	item, err := order.NewLineItem(productID, 1)
	suite.Require().NoError(err)
	o, err := order.NewOrder(kernel.NewUUID(), order.NewAddress(zone, "", nil), []order.LineItem{item})
	suite.Require().NoError(err)

	uow := suite.uow.Create()
	suite.Require().NoError(uow.Begin(ctx))
	defer func() { _ = uow.Rollback(ctx) }()

	suite.Require().NoError(uow.OrderRepository().Add(ctx, o))
	suite.Require().NoError(o.Approve())
	suite.Require().NoError(uow.OrderRepository().Update(ctx, o))
	suite.Require().NoError(uow.Commit(ctx))
	return o.ID()
}

func (suite *AssignmentIntegrationTestSuite) assign(h *commands.AssignOrderCommandHandler, orderID kernel.UUID) commands.AssignOrderResult {
	cmd, err := commands.NewAssignOrderCommand(orderID)
	suite.Require().NoError(err)
	result, err := h.Handle(context.Background(), cmd)
	suite.Require().NoError(err)
	return result
}

func (suite *AssignmentIntegrationTestSuite) batchesOf(zone string) []batchrepo.BatchDTO {
	var rows []batchrepo.BatchDTO
	suite.Require().NoError(suite.database.DB.
		Where("zone = ?", zone).
		Order("sequence ASC").
		Find(&rows).Error)
	return rows
}

func (suite *AssignmentIntegrationTestSuite) assertWeight(row batchrepo.BatchDTO, want int64) {
	suite.Truef(row.TotalWeight.Equal(decimal.NewFromInt(want)),
		"batch %s: total %s, want %d", row.ID, row.TotalWeight, want)
}

func (suite *AssignmentIntegrationTestSuite) TestSequentialOrdersFillOneBatchUntilReady() {
	h := suite.assigner(batch.DefaultCapacityPolicy())

	var results []commands.AssignOrderResult
	for range 3 {
		results = append(results, suite.assign(h, suite.approvedOrder("Zone-A", 1200)))
	}

	rows := suite.batchesOf("Zone-A")
	suite.Require().Len(rows, 1)
	suite.assertWeight(rows[0], 3600)
	suite.Equal(batch.StatusReadyForDelivery.String(), rows[0].Status)
	suite.False(results[1].BecameReady)
	suite.True(results[2].BecameReady)

	suite.assign(h, suite.approvedOrder("Zone-A", 2000))

	rows = suite.batchesOf("Zone-A")
	suite.Require().Len(rows, 2)
	suite.assertWeight(rows[0], 3600)
	suite.assertWeight(rows[1], 2000)
	suite.Equal(batch.StatusPending.String(), rows[1].Status)
}

func (suite *AssignmentIntegrationTestSuite) TestOrderJoinsTightestFittingBatch() {
	h := suite.assigner(batch.DefaultCapacityPolicy())
	suite.assign(h, suite.approvedOrder("Zone-A", 2500))
	suite.assign(h, suite.approvedOrder("Zone-A", 3000))

	rows := suite.batchesOf("Zone-A")
	suite.Require().Len(rows, 2)

	result := suite.assign(h, suite.approvedOrder("Zone-A", 500))

	rows = suite.batchesOf("Zone-A")
	suite.Require().Len(rows, 2)
	suite.assertWeight(rows[0], 2500)
	suite.assertWeight(rows[1], 3500)
	suite.Equal(batch.StatusReadyForDelivery.String(), rows[1].Status)
	suite.True(result.BecameReady)
	suite.Equal("1500", result.Remaining.String())
}

func (suite *AssignmentIntegrationTestSuite) TestAssignTwiceIsNoop() {
	h := suite.assigner(batch.DefaultCapacityPolicy())
	orderID := suite.approvedOrder("Zone-A", 700)

	first := suite.assign(h, orderID)
	second := suite.assign(h, orderID)

	suite.False(first.AlreadyAssigned)
	suite.True(second.AlreadyAssigned)
	suite.Equal(first.BatchID, second.BatchID)

	rows := suite.batchesOf("Zone-A")
	suite.Require().Len(rows, 1)
	suite.assertWeight(rows[0], 700)
}

func (suite *AssignmentIntegrationTestSuite) TestConcurrentZonesDoNotMix() {
	h := suite.assigner(batch.DefaultCapacityPolicy())
	orders := []kernel.UUID{
		suite.approvedOrder("Zone-A", 10),
		suite.approvedOrder("Zone-A", 10),
		suite.approvedOrder("Zone-B", 10),
		suite.approvedOrder("Zone-B", 10),
	}

	suite.assignConcurrently(h, orders)

	for _, zone := range []string{"Zone-A", "Zone-B"} {
		rows := suite.batchesOf(zone)
		suite.Require().Lenf(rows, 1, "zone %s", zone)
		suite.assertWeight(rows[0], 20)
	}
}

func (suite *AssignmentIntegrationTestSuite) TestConcurrentSameZoneLandsInOneBatch() {
	policy, err := batch.NewCapacityPolicy(kernel.MustWeight(50), kernel.MustWeight(100))
	suite.Require().NoError(err)
	h := suite.assigner(policy)

	orders := make([]kernel.UUID, 0, 10)
	for range 10 {
		orders = append(orders, suite.approvedOrder("Zone-New", 1))
	}

	suite.assignConcurrently(h, orders)

	rows := suite.batchesOf("Zone-New")
	suite.Require().Len(rows, 1)
	suite.assertWeight(rows[0], 10)
	suite.Equal(batch.StatusPending.String(), rows[0].Status)
}

func (suite *AssignmentIntegrationTestSuite) TestConsolidationRestoresDriftedTotal() {
	ctx := context.Background()
	h := suite.assigner(batch.DefaultCapacityPolicy())
	for _, w := range []float64{1200, 1200, 1600} {
		suite.assign(h, suite.approvedOrder("Zone-A", w))
	}

	rows := suite.batchesOf("Zone-A")
	suite.Require().Len(rows, 1)
	suite.Require().NoError(suite.database.DB.
		Model(&batchrepo.BatchDTO{}).
		Where("id = ?", rows[0].ID).
		Update("total_weight", decimal.NewFromInt(4500)).Error)

	consolidation := commands.NewRunConsolidationCommandHandler(
		suite.uow, batch.DefaultCapacityPolicy(), notifier.NewDiscard(slog.Default()), nil, nil)
	report, err := consolidation.Handle(ctx, commands.NewRunConsolidationCommand())

	suite.Require().NoError(err)
	suite.Equal(1, report.Corrected)
	rows = suite.batchesOf("Zone-A")
	suite.Require().Len(rows, 1)
	suite.assertWeight(rows[0], 4000)

	report, err = consolidation.Handle(ctx, commands.NewRunConsolidationCommand())
	suite.Require().NoError(err)
	suite.True(report.IsEmpty())
}

func (suite *AssignmentIntegrationTestSuite) assignConcurrently(h *commands.AssignOrderCommandHandler, orders []kernel.UUID) {
	var wg sync.WaitGroup
	errCh := make(chan error, len(orders))
	start := make(chan struct{})

	for _, id := range orders {
		wg.Add(1)
		go func(id kernel.UUID) {
			defer wg.Done()
			<-start
			cmd, err := commands.NewAssignOrderCommand(id)
			if err == nil {
				_, err = h.Handle(context.Background(), cmd)
			}
			errCh <- err
		}(id)
	}
	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		suite.Require().NoError(err)
	}
}

func TestAssignmentIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(AssignmentIntegrationTestSuite))
}
