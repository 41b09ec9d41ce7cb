package zonelock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix  = "dispatch:zonelock:"
	DefaultLeaseTTL   = 30 * time.Second
	DefaultRetryDelay = 25 * time.Millisecond
)

var _ ports.ZoneLocker = (*Redis)(nil)

// releaseScript deletes the key only when it still holds our token, so an
// expired lease taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	KeyPrefix  string
	LeaseTTL   time.Duration
	Wait       time.Duration
	RetryDelay time.Duration
}

// Redis is a distributed zone lock built on SET NX PX.
type Redis struct {
	client redis.UniversalClient
	config RedisConfig
	logger *slog.Logger
}

func NewRedis(client redis.UniversalClient, config RedisConfig, logger *slog.Logger) *Redis {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = DefaultLeaseTTL
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	return &Redis{
		client: client,
		config: config,
		logger: logger.With("component", "zone_lock"),
	}
}

func (r *Redis) key(zone string) string {
	return r.config.KeyPrefix + zone
}

func (r *Redis) Acquire(ctx context.Context, zone string) (ports.ReleaseFunc, error) {
	key := r.key(zone)
	token := uuid.NewString()

	waitCtx := ctx
	if r.config.Wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.config.Wait)
		defer cancel()
	}

	delay := r.config.RetryDelay
	for {
		ok, err := r.client.SetNX(waitCtx, key, token, r.config.LeaseTTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, errs.NewRepositoryUnavailableError("acquire zone lock", err)
		}
		if ok {
			return r.releaser(key, token), nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.WarnContext(ctx, "zone lock wait exceeded", "zone", zone, "wait", r.config.Wait)
			return nil, ports.ErrZoneLockTimeout
		}
		if delay < 8*r.config.RetryDelay {
			delay *= 2
		}
	}
}

func (r *Redis) releaser(key, token string) ports.ReleaseFunc {
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			var released int64
			released, err = releaseScript.Run(ctx, r.client, []string{key}, token).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				err = fmt.Errorf("release zone lock %s: %w", key, err)
				return
			}
			err = nil
			if released == 0 {
				r.logger.WarnContext(ctx, "zone lock lease expired before release", "key", key)
			}
		})
		return err
	}
}
