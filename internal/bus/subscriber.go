// internal/bus/subscriber.go
package bus

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"fleetpulse/internal/hub"
)

// Subscriber listens for telemetry announcements from the ingestion path
// and re-broadcasts them to hub subscribers on the telemetry channel.
type Subscriber struct {
	client *redis.Client
	hub    *hub.Hub
	logger *zap.Logger
}

// NewSubscriber creates a telemetry announce subscriber
func NewSubscriber(client *redis.Client, h *hub.Hub, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		client: client,
		hub:    h,
		logger: logger,
	}
}

// Run consumes announcements until ctx is cancelled. Intended to be run
// in its own goroutine; it never panics the process on bus errors.
func (s *Subscriber) Run(ctx context.Context) {
	pubsub := s.client.Subscribe(ctx, ChannelTelemetryNew)
	defer pubsub.Close()

	s.logger.Info("Telemetry announce subscriber started", zap.String("channel", ChannelTelemetryNew))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Telemetry announce subscriber stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				s.logger.Warn("Telemetry announce channel closed")
				return
			}
			s.hub.Broadcast(hub.ChannelTelemetry, &hub.Message{
				Type:     hub.TypeTelemetryUpdated,
				DeviceID: msg.Payload,
			})
		}
	}
}
