// internal/bus/bus.go
package bus

import (
	"context"

	"github.com/go-redis/redis/v8"

	"fleetpulse/internal/config"
)

// ChannelTelemetryNew is the redis pub/sub channel the ingestion path
// announces fresh telemetry on. The message payload is the device id.
const ChannelTelemetryNew = "telemetry:new"

// NewRedisClient creates a redis client for the announce bus
func NewRedisClient(cfg *config.RedisConfig, addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping verifies the redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
