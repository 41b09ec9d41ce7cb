// Package roster keeps the per-zone pool of available drivers in Redis sets.
package roster

import (
	"context"
	"errors"
	"fmt"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/resilience"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "roster:zone:"

var (
	_ ports.DriverRoster   = (*Redis)(nil)
	_ ports.DriverRegistry = (*Redis)(nil)
)

// Redis stores available drivers of a zone in the set
// <prefix><zone>:available. Picking a driver pops it from the set, so two
// callers never receive the same driver.
type Redis struct {
	client  redis.UniversalClient
	breaker *resilience.CircuitBreaker
	prefix  string
}

func NewRedis(client redis.UniversalClient, breaker *resilience.CircuitBreaker, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, breaker: breaker, prefix: prefix}
}

func (r *Redis) key(zone string) string {
	return r.prefix + zone + ":available"
}

func (r *Redis) PickAvailableDriver(ctx context.Context, zone string) (kernel.UUID, error) {
	return resilience.Execute(ctx, r.breaker, func(ctx context.Context) (kernel.UUID, error) {
		raw, err := r.client.SPop(ctx, r.key(zone)).Result()
		if errors.Is(err, redis.Nil) {
			return kernel.UUID{}, ports.ErrNoDriverAvailable
		}
		if err != nil {
			return kernel.UUID{}, fmt.Errorf("pick driver in %s: %w", zone, err)
		}
		return kernel.UUIDFromString(raw)
	})
}

func (r *Redis) ReturnDriver(ctx context.Context, zone string, driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}
	_, err := resilience.Execute(ctx, r.breaker, func(ctx context.Context) (int64, error) {
		return r.client.SAdd(ctx, r.key(zone), driverID.String()).Result()
	})
	return err
}

// Register marks drivers as available in zone.
func (r *Redis) Register(ctx context.Context, zone string, driverIDs ...kernel.UUID) error {
	if len(driverIDs) == 0 {
		return nil
	}
	members := make([]any, 0, len(driverIDs))
	for _, id := range driverIDs {
		if err := id.Validate(); err != nil {
			return err
		}
		members = append(members, id.String())
	}
	return r.client.SAdd(ctx, r.key(zone), members...).Err()
}

// Available counts the free drivers of zone.
func (r *Redis) Available(ctx context.Context, zone string) (int64, error) {
	return r.client.SCard(ctx, r.key(zone)).Result()
}
