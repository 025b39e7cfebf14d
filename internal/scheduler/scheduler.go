// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetpulse/internal/config"
	"fleetpulse/internal/hub"
	"fleetpulse/internal/repository"
	"fleetpulse/internal/rules"
)

// Scheduler drives the periodic evaluation cycle: run the rules engine,
// push candidates through the deduplication gate, and notify hub
// subscribers when anything changed. A tick that fails is logged and the
// next tick proceeds independently; the loops only stop on ctx cancel.
type Scheduler struct {
	engine  *rules.Engine
	gate    *rules.Gate
	devices repository.DeviceRepository
	hub     *hub.Hub
	config  *config.SchedulerConfig
	logger  *zap.Logger

	// now is swappable for tests
	now func() time.Time
}

// New creates a scheduler
func New(
	engine *rules.Engine,
	gate *rules.Gate,
	devices repository.DeviceRepository,
	h *hub.Hub,
	cfg *config.SchedulerConfig,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		engine:  engine,
		gate:    gate,
		devices: devices,
		hub:     h,
		config:  cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the incident detection and device status loops until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.runDetectLoop(ctx)
	go s.runStatusLoop(ctx)

	s.logger.Info("Scheduler started",
		zap.Duration("detect_interval", s.config.DetectInterval),
		zap.Duration("status_interval", s.config.StatusInterval),
	)
}

func (s *Scheduler) runDetectLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.DetectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Incident detection loop stopped")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
			if _, err := s.DetectIncidents(tickCtx); err != nil {
				s.logger.Error("Incident detection tick failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (s *Scheduler) runStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Device status loop stopped")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
			if _, err := s.UpdateDeviceStatus(tickCtx); err != nil {
				s.logger.Error("Device status tick failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// DetectIncidents runs one evaluation tick: evaluate rules, admit
// candidates through the gate, and broadcast a summary on the events
// channel when at least one incident was accepted. Returns how many
// incidents were created.
func (s *Scheduler) DetectIncidents(ctx context.Context) (int, error) {
	candidates := s.engine.Evaluate(ctx, s.now())

	created := 0
	for i := range candidates {
		event, err := s.gate.Admit(ctx, &candidates[i])
		if err != nil {
			// One failed candidate must not drop the rest of the batch
			s.logger.Error("Failed to admit candidate",
				zap.Error(err),
				zap.String("device_id", candidates[i].DeviceID),
				zap.String("type", string(candidates[i].Type)),
			)
			continue
		}
		if event != nil {
			created++
		}
	}

	if created > 0 {
		s.hub.Broadcast(hub.ChannelEvents, &hub.Message{
			Type:  hub.TypeEventsUpdated,
			Count: created,
		})
	}

	s.logger.Debug("Incident detection tick completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("created", created),
	)
	return created, nil
}

// UpdateDeviceStatus transitions devices unseen past the offline threshold
// to offline and broadcasts on the devices channel when any changed.
// Returns how many devices were updated.
func (s *Scheduler) UpdateDeviceStatus(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.OfflineThreshold)

	updated, err := s.devices.MarkOfflineBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.logger.Info("Devices transitioned to offline", zap.Int64("count", updated))
		s.hub.Broadcast(hub.ChannelDevices, &hub.Message{
			Type: hub.TypeDeviceStatusUpdated,
		})
	}

	return updated, nil
}

// SetNow overrides the scheduler clock. Test hook.
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}
