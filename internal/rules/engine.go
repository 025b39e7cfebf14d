// internal/rules/engine.go
package rules

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetpulse/internal/config"
	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
)

// Engine evaluates incident detection rules over current device and
// telemetry state. Evaluation is read-only: the engine produces candidates
// and never writes or broadcasts; persisting accepted candidates is the
// gate's job and notifying observers is the scheduler's.
type Engine struct {
	devices   repository.DeviceRepository
	telemetry repository.TelemetryRepository
	config    *config.RulesConfig
	logger    *zap.Logger
}

// NewEngine creates a rules engine
func NewEngine(
	devices repository.DeviceRepository,
	telemetry repository.TelemetryRepository,
	cfg *config.RulesConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		devices:   devices,
		telemetry: telemetry,
		config:    cfg,
		logger:    logger,
	}
}

// Evaluate runs every detection rule against state as of now and returns
// the combined candidates. Rules are independent: a failing rule is logged
// and the remaining rules still run.
func (e *Engine) Evaluate(ctx context.Context, now time.Time) []model.EventCandidate {
	var candidates []model.EventCandidate

	lowBattery, err := e.detectLowBattery(ctx, now)
	if err != nil {
		e.logger.Error("Low battery rule failed", zap.Error(err))
	} else {
		candidates = append(candidates, lowBattery...)
	}

	stale, err := e.detectStaleDevices(ctx, now)
	if err != nil {
		e.logger.Error("Stale device rule failed", zap.Error(err))
	} else {
		candidates = append(candidates, stale...)
	}

	impacts, err := e.detectImpacts(ctx, now)
	if err != nil {
		e.logger.Error("Impact rule failed", zap.Error(err))
	} else {
		candidates = append(candidates, impacts...)
	}

	return candidates
}

// detectLowBattery flags devices whose most recent battery reading is
// below the configured threshold. Strictly less-than; a reading exactly at
// the threshold is fine.
func (e *Engine) detectLowBattery(ctx context.Context, now time.Time) ([]model.EventCandidate, error) {
	readings, err := e.telemetry.LatestBatteryReadings(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []model.EventCandidate
	for _, reading := range readings {
		if int(reading.BatteryPct) >= e.config.LowBatteryThreshold {
			continue
		}

		severity := model.SeverityWarning
		if int(reading.BatteryPct) < e.config.CriticalBatteryLevel {
			severity = model.SeverityCritical
		}

		candidates = append(candidates, model.EventCandidate{
			DeviceID: reading.DeviceID,
			Type:     model.EventTypeLowBattery,
			Severity: severity,
			TS:       now,
			Payload: model.JSONObject{
				"battery_pct": int(reading.BatteryPct),
				"threshold":   e.config.LowBatteryThreshold,
			},
		})
	}

	return candidates, nil
}

// detectStaleDevices flags devices that have not reported within the
// staleness threshold. Devices already marked offline never produce this
// candidate; they are considered down, not stale.
func (e *Engine) detectStaleDevices(ctx context.Context, now time.Time) ([]model.EventCandidate, error) {
	cutoff := now.Add(-e.config.StaleDeviceThreshold)

	devices, err := e.devices.ListStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var candidates []model.EventCandidate
	for _, device := range devices {
		if device.LastSeenAt == nil {
			continue
		}

		minutesAgo := int(now.Sub(*device.LastSeenAt).Minutes())
		candidates = append(candidates, model.EventCandidate{
			DeviceID: device.ID,
			Type:     model.EventTypeStale,
			Severity: model.SeverityWarning,
			TS:       now,
			Payload: model.JSONObject{
				"last_seen_mins_ago": minutesAgo,
				"threshold_mins":     int(e.config.StaleDeviceThreshold.Minutes()),
			},
		})
	}

	return candidates, nil
}

// detectImpacts flags readings in the lookback window at or above the
// acceleration threshold. Impact candidates carry the reading's exact
// timestamp; deduplication for them is by (device, type, ts), not by the
// open-incident rule.
func (e *Engine) detectImpacts(ctx context.Context, now time.Time) ([]model.EventCandidate, error) {
	since := now.Add(-e.config.ImpactLookback)

	readings, err := e.telemetry.ListHighAcceleration(ctx, since, e.config.ImpactThresholdG)
	if err != nil {
		return nil, err
	}

	var candidates []model.EventCandidate
	for _, reading := range readings {
		if reading.AccelG == nil {
			continue
		}

		payload := model.JSONObject{
			"accel_g": *reading.AccelG,
			"ts":      reading.TS.Format(time.RFC3339),
		}
		if reading.Lat != nil {
			payload["lat"] = *reading.Lat
		}
		if reading.Lon != nil {
			payload["lon"] = *reading.Lon
		}

		candidates = append(candidates, model.EventCandidate{
			DeviceID: reading.DeviceID,
			Type:     model.EventTypeImpact,
			Severity: model.SeverityCritical,
			TS:       reading.TS,
			Payload:  payload,
		})
	}

	return candidates, nil
}
