package zonelock_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/adapters/out/zonelock"
	"dispatch/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisLockIntegrationTestSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	logger    *slog.Logger
}

func (suite *RedisLockIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	suite.Require().NoError(err)
	suite.container = container

	uri, err := container.ConnectionString(ctx)
	suite.Require().NoError(err)

	opts, err := redis.ParseURL(uri)
	suite.Require().NoError(err)
	suite.client = redis.NewClient(opts)
	suite.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (suite *RedisLockIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.client.FlushDB(context.Background()).Err())
}

func (suite *RedisLockIntegrationTestSuite) TearDownSuite() {
	if suite.client != nil {
		_ = suite.client.Close()
	}
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *RedisLockIntegrationTestSuite) newLocker(wait time.Duration) *zonelock.Redis {
	return zonelock.NewRedis(suite.client, zonelock.RedisConfig{
		Wait:       wait,
		RetryDelay: 5 * time.Millisecond,
	}, suite.logger)
}

func (suite *RedisLockIntegrationTestSuite) TestAcquireRelease() {
	ctx := context.Background()
	locker := suite.newLocker(time.Second)

	release, err := locker.Acquire(ctx, "north")
	suite.Require().NoError(err)

	exists, err := suite.client.Exists(ctx, zonelock.DefaultKeyPrefix+"north").Result()
	suite.Require().NoError(err)
	suite.Equal(int64(1), exists)

	suite.Require().NoError(release(ctx))
	suite.Require().NoError(release(ctx))

	exists, err = suite.client.Exists(ctx, zonelock.DefaultKeyPrefix+"north").Result()
	suite.Require().NoError(err)
	suite.Equal(int64(0), exists)
}

func (suite *RedisLockIntegrationTestSuite) TestTimeoutWhileHeld() {
	ctx := context.Background()
	first := suite.newLocker(time.Second)
	second := suite.newLocker(50 * time.Millisecond)

	release, err := first.Acquire(ctx, "north")
	suite.Require().NoError(err)
	defer release(ctx)

	_, err = second.Acquire(ctx, "north")
	suite.ErrorIs(err, ports.ErrZoneLockTimeout)
}

func (suite *RedisLockIntegrationTestSuite) TestReleaseDoesNotDropForeignLease() {
	ctx := context.Background()
	locker := zonelock.NewRedis(suite.client, zonelock.RedisConfig{
		LeaseTTL:   50 * time.Millisecond,
		RetryDelay: 5 * time.Millisecond,
		Wait:       time.Second,
	}, suite.logger)

	staleRelease, err := locker.Acquire(ctx, "north")
	suite.Require().NoError(err)

	// lease expires and another holder takes the zone
	time.Sleep(100 * time.Millisecond)
	freshRelease, err := locker.Acquire(ctx, "north")
	suite.Require().NoError(err)

	suite.Require().NoError(staleRelease(ctx))

	exists, err := suite.client.Exists(ctx, zonelock.DefaultKeyPrefix+"north").Result()
	suite.Require().NoError(err)
	suite.Equal(int64(1), exists, "stale release must keep the new holder's lease")

	suite.Require().NoError(freshRelease(ctx))
}

func (suite *RedisLockIntegrationTestSuite) TestMutualExclusionAcrossLockers() {
	ctx := context.Background()

	var (
		inside     atomic.Int32
		violations atomic.Int32
		wg         sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locker := suite.newLocker(10 * time.Second)
			release, err := locker.Acquire(ctx, "north")
			if err != nil {
				violations.Add(1)
				return
			}
			if inside.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			_ = release(ctx)
		}()
	}
	wg.Wait()

	suite.Equal(int32(0), violations.Load())
}

func TestRedisLockIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(RedisLockIntegrationTestSuite))
}
