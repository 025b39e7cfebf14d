// internal/bus/publisher.go
package bus

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Publisher announces new telemetry to any process hosting a hub. The
// announce is fire-and-forget: a bus failure is logged and swallowed so it
// can never fail the primary ingest write path.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a telemetry announce publisher
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// AnnounceTelemetry publishes the device id on the telemetry channel
func (p *Publisher) AnnounceTelemetry(ctx context.Context, deviceID string) {
	if err := p.client.Publish(ctx, ChannelTelemetryNew, deviceID).Err(); err != nil {
		p.logger.Warn("Telemetry announce failed",
			zap.Error(err),
			zap.String("device_id", deviceID),
		)
	}
}
