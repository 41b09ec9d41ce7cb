package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dispatch/internal/adapters/out/notifier"
	"dispatch/internal/adapters/out/postgres"
	"dispatch/internal/adapters/out/postgres/productrepo"
	"dispatch/internal/adapters/out/roster"
	"dispatch/internal/adapters/out/zonefile"
	"dispatch/internal/adapters/out/zonelock"
	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/jobs"
	"dispatch/internal/pkg/metrics"
	"dispatch/internal/pkg/resilience"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"
)

// CompositionRoot owns the long-lived collaborators and builds handlers on
// top of them.
type CompositionRoot struct {
	config     Config
	gormDB     *gorm.DB
	uowFactory *postgres.GormUnitOfWorkFactory
	redis      redis.UniversalClient
	metrics    *metrics.Metrics
	logger     *slog.Logger

	policy   batch.CapacityPolicy
	resolver *services.ZoneResolver
	catalog  *productrepo.GormProductCatalog
	locker   ports.ZoneLocker
	roster   *roster.Redis
	notifier ports.Notifier
	closers  []func(ctx context.Context) error

	assigner *commands.AssignOrderCommandHandler
}

func NewCompositionRoot(
	config Config,
	gormDB *gorm.DB,
	redisClient redis.UniversalClient,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*CompositionRoot, error) {
	policy, err := batch.NewCapacityPolicy(config.MinThreshold, config.MaxCapacity)
	if err != nil {
		return nil, fmt.Errorf("capacity policy: %w", err)
	}

	zones := zonefile.Defaults()
	if config.ZonesFile != "" {
		if zones, err = zonefile.Load(config.ZonesFile); err != nil {
			return nil, err
		}
	}
	resolver, err := services.NewZoneResolver(zones)
	if err != nil {
		return nil, fmt.Errorf("zone table: %w", err)
	}

	c := &CompositionRoot{
		config:     config,
		gormDB:     gormDB,
		uowFactory: postgres.NewGormUnitOfWorkFactory(gormDB),
		redis:      redisClient,
		metrics:    m,
		logger:     logger,
		policy:     policy,
		resolver:   resolver,
		catalog:    productrepo.NewGormProductCatalog(gormDB),
	}

	c.locker = c.newZoneLocker()
	c.roster = roster.NewRedis(redisClient, c.newBreaker("driver_roster", ports.ErrNoDriverAvailable), config.RosterPrefix)
	c.notifier = c.newNotifier()

	assigner := c.CreateAssignOrderCommandHandler()
	c.assigner = &assigner

	logger.Info("composition root ready",
		"zones", len(zones),
		"lock_backend", config.ZoneLockBackend,
		"notifications", len(config.KafkaBrokers) > 0,
	)
	return c, nil
}

func (c *CompositionRoot) newZoneLocker() ports.ZoneLocker {
	if c.config.ZoneLockBackend == LockBackendRedis {
		return zonelock.NewRedis(c.redis, zonelock.RedisConfig{
			LeaseTTL: c.config.ZoneLockLease,
			Wait:     c.config.ZoneLockTimeout,
		}, c.logger)
	}
	return zonelock.NewLocal(c.config.ZoneLockTimeout)
}

func (c *CompositionRoot) newNotifier() ports.Notifier {
	if len(c.config.KafkaBrokers) == 0 {
		return notifier.NewDiscard(c.logger)
	}

	kafkaConfig := notifier.DefaultKafkaConfig()
	kafkaConfig.Brokers = c.config.KafkaBrokers
	kafkaConfig.Topic = c.config.KafkaLifecycleTopic

	k := notifier.NewKafka(
		notifier.NewKafkaWriter(kafkaConfig),
		kafkaConfig,
		c.newBreaker("notifier"),
		c.metrics,
		c.logger,
	)
	c.closers = append(c.closers, k.Close)
	return k
}

func (c *CompositionRoot) newBreaker(name string, ignore ...error) *resilience.CircuitBreaker {
	observe := func(breaker string, state gobreaker.State) {
		c.metrics.BreakerState(breaker, float64(state))
	}
	return resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(name), c.logger, observe, ignore...)
}

// Close flushes the notifier. The database and Redis clients belong to the
// caller.
func (c *CompositionRoot) Close(ctx context.Context) error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn(ctx))
	}
	return errors.Join(errs...)
}

func (c *CompositionRoot) uow() commands.UoWFactory {
	return FuncUoWFactory(func() commands.UoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) orderUoW() commands.OrderUoWFactory {
	return FuncOrderUoWFactory(func() commands.OrderUoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) CreateCreateOrderCommandHandler() commands.CreateOrderCommandHandler {
	return commands.NewCreateOrderCommandHandler(c.orderUoW(), c.logger)
}

func (c *CompositionRoot) CreateApproveOrderCommandHandler() commands.ApproveOrderCommandHandler {
	return commands.NewApproveOrderCommandHandler(c.orderUoW(), c.assigner, c.logger)
}

func (c *CompositionRoot) CreateAssignOrderCommandHandler() commands.AssignOrderCommandHandler {
	return commands.NewAssignOrderCommandHandler(
		c.uow(),
		c.locker,
		commands.NewOrderPreparer(c.resolver, c.catalog),
		c.policy,
		c.notifier,
		c.metrics,
		c.logger,
	)
}

func (c *CompositionRoot) CreateMarkOrderDeliveredCommandHandler() commands.MarkOrderDeliveredCommandHandler {
	return commands.NewMarkOrderDeliveredCommandHandler(c.uow(), c.notifier, c.metrics, c.logger)
}

func (c *CompositionRoot) CreateCancelOrderCommandHandler() commands.CancelOrderCommandHandler {
	return commands.NewCancelOrderCommandHandler(c.uow(), c.notifier, c.metrics, c.logger)
}

func (c *CompositionRoot) CreateTransitionBatchCommandHandler() commands.TransitionBatchCommandHandler {
	return commands.NewTransitionBatchCommandHandler(c.uow(), c.roster, c.notifier, c.metrics, c.logger)
}

func (c *CompositionRoot) CreateAssignDriversCommandHandler() commands.AssignDriversCommandHandler {
	transitioner := c.CreateTransitionBatchCommandHandler()
	return commands.NewAssignDriversCommandHandler(c.uow(), &transitioner, c.logger)
}

func (c *CompositionRoot) CreateRunConsolidationCommandHandler() commands.RunConsolidationCommandHandler {
	return commands.NewRunConsolidationCommandHandler(c.uow(), c.policy, c.notifier, c.metrics, c.logger)
}

func (c *CompositionRoot) CreateSweepUnassignedCommandHandler() commands.SweepUnassignedCommandHandler {
	return commands.NewSweepUnassignedCommandHandler(c.orderUoW(), c.assigner, c.logger)
}

func (c *CompositionRoot) CreateReresolveZonesCommandHandler() commands.ReresolveZonesCommandHandler {
	return commands.NewReresolveZonesCommandHandler(c.uow(), c.resolver, c.assigner, c.logger)
}

func (c *CompositionRoot) CreateRegisterDriversCommandHandler() commands.RegisterDriversCommandHandler {
	return commands.NewRegisterDriversCommandHandler(c.roster, c.logger)
}

func (c *CompositionRoot) CreateSaveProductCommandHandler() commands.SaveProductCommandHandler {
	return commands.NewSaveProductCommandHandler(c.catalog, c.logger)
}

func (c *CompositionRoot) CreateGetBatchQueryHandler() queries.GetBatchQueryHandler {
	return queries.NewGetBatchQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateListBatchesQueryHandler() queries.ListBatchesQueryHandler {
	return queries.NewListBatchesQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateJobManager() *jobs.JobManager {
	consolidation := c.CreateRunConsolidationCommandHandler()
	sweep := c.CreateSweepUnassignedCommandHandler()
	drivers := c.CreateAssignDriversCommandHandler()
	return jobs.NewDefaultJobManager(&consolidation, &sweep, &drivers, jobs.Settings{
		ConsolidationSchedule:    c.config.ConsolidationSchedule,
		ConsolidationTimeout:     c.config.ConsolidationTimeout,
		SweepSchedule:            c.config.SweepSchedule,
		SweepLimit:               c.config.SweepLimit,
		DriverAssignmentSchedule: c.config.DriverAssignmentSchedule,
		DriverAssignmentLimit:    c.config.DriverAssignmentLimit,
	}, c.logger)
}

type FuncOrderUoWFactory func() commands.OrderUoW

func (f FuncOrderUoWFactory) Create() commands.OrderUoW {
	return f()
}

type FuncUoWFactory func() commands.UoW

func (f FuncUoWFactory) Create() commands.UoW {
	return f()
}
