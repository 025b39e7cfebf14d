// internal/rules/engine_test.go
package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetpulse/internal/config"
	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
)

type fakeDeviceRepo struct {
	repository.DeviceRepository

	staleDevices []*model.Device
	staleErr     error
}

func (f *fakeDeviceRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*model.Device, error) {
	if f.staleErr != nil {
		return nil, f.staleErr
	}
	return f.staleDevices, nil
}

type fakeTelemetryRepo struct {
	repository.TelemetryRepository

	batteryReadings []*model.LatestBatteryReading
	batteryErr      error
	highAccel       []*model.TelemetryReading
	highAccelErr    error
}

func (f *fakeTelemetryRepo) LatestBatteryReadings(ctx context.Context) ([]*model.LatestBatteryReading, error) {
	if f.batteryErr != nil {
		return nil, f.batteryErr
	}
	return f.batteryReadings, nil
}

func (f *fakeTelemetryRepo) ListHighAcceleration(ctx context.Context, since time.Time, thresholdG float64) ([]*model.TelemetryReading, error) {
	if f.highAccelErr != nil {
		return nil, f.highAccelErr
	}
	return f.highAccel, nil
}

func testRulesConfig() *config.RulesConfig {
	return &config.RulesConfig{
		LowBatteryThreshold:  20,
		CriticalBatteryLevel: 10,
		StaleDeviceThreshold: 15 * time.Minute,
		ImpactThresholdG:     3.0,
		ImpactLookback:       5 * time.Minute,
	}
}

func newTestEngine(devices *fakeDeviceRepo, telemetry *fakeTelemetryRepo) *Engine {
	return NewEngine(devices, telemetry, testRulesConfig(), zap.NewNop())
}

func TestDetectLowBatterySeverity(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name         string
		batteryPct   int16
		wantCount    int
		wantSeverity model.EventSeverity
	}{
		{"critical below critical level", 5, 1, model.SeverityCritical},
		{"critical at nine", 9, 1, model.SeverityCritical},
		{"warning at critical level", 10, 1, model.SeverityWarning},
		{"warning below threshold", 15, 1, model.SeverityWarning},
		{"no event at threshold", 20, 0, ""},
		{"no event above threshold", 80, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			telemetry := &fakeTelemetryRepo{
				batteryReadings: []*model.LatestBatteryReading{
					{DeviceID: "veh-001", BatteryPct: tt.batteryPct, TS: now},
				},
			}
			engine := newTestEngine(&fakeDeviceRepo{}, telemetry)

			candidates := engine.Evaluate(context.Background(), now)

			require.Len(t, candidates, tt.wantCount)
			if tt.wantCount > 0 {
				assert.Equal(t, "veh-001", candidates[0].DeviceID)
				assert.Equal(t, model.EventTypeLowBattery, candidates[0].Type)
				assert.Equal(t, tt.wantSeverity, candidates[0].Severity)
				assert.Equal(t, int(tt.batteryPct), candidates[0].Payload["battery_pct"])
			}
		})
	}
}

func TestDetectLowBatteryUsesLatestReadingOnly(t *testing.T) {
	now := time.Now().UTC()

	// One reading per device is what the repository returns; a device whose
	// newest reading recovered above the threshold produces nothing.
	telemetry := &fakeTelemetryRepo{
		batteryReadings: []*model.LatestBatteryReading{
			{DeviceID: "veh-001", BatteryPct: 55, TS: now},
			{DeviceID: "veh-002", BatteryPct: 12, TS: now},
		},
	}
	engine := newTestEngine(&fakeDeviceRepo{}, telemetry)

	candidates := engine.Evaluate(context.Background(), now)

	require.Len(t, candidates, 1)
	assert.Equal(t, "veh-002", candidates[0].DeviceID)
}

func TestDetectStaleDevices(t *testing.T) {
	now := time.Now().UTC()
	lastSeen := now.Add(-30 * time.Minute)

	devices := &fakeDeviceRepo{
		staleDevices: []*model.Device{
			{ID: "veh-001", Status: model.DeviceStatusOnline, LastSeenAt: &lastSeen},
		},
	}
	engine := newTestEngine(devices, &fakeTelemetryRepo{})

	candidates := engine.Evaluate(context.Background(), now)

	require.Len(t, candidates, 1)
	assert.Equal(t, model.EventTypeStale, candidates[0].Type)
	assert.Equal(t, model.SeverityWarning, candidates[0].Severity)
	assert.Equal(t, 30, candidates[0].Payload["last_seen_mins_ago"])
	assert.Equal(t, 15, candidates[0].Payload["threshold_mins"])
}

func TestDetectStaleSkipsDeviceWithoutLastSeen(t *testing.T) {
	now := time.Now().UTC()

	devices := &fakeDeviceRepo{
		staleDevices: []*model.Device{
			{ID: "veh-001", Status: model.DeviceStatusOnline, LastSeenAt: nil},
		},
	}
	engine := newTestEngine(devices, &fakeTelemetryRepo{})

	candidates := engine.Evaluate(context.Background(), now)
	assert.Empty(t, candidates)
}

func TestDetectImpacts(t *testing.T) {
	now := time.Now().UTC()
	readingTS := now.Add(-2 * time.Minute)
	accel := 4.2
	lat, lon := 41.0082, 28.9784

	telemetry := &fakeTelemetryRepo{
		highAccel: []*model.TelemetryReading{
			{DeviceID: "veh-001", TS: readingTS, AccelG: &accel, Lat: &lat, Lon: &lon},
		},
	}
	engine := newTestEngine(&fakeDeviceRepo{}, telemetry)

	candidates := engine.Evaluate(context.Background(), now)

	require.Len(t, candidates, 1)
	assert.Equal(t, model.EventTypeImpact, candidates[0].Type)
	assert.Equal(t, model.SeverityCritical, candidates[0].Severity)
	assert.True(t, candidates[0].TS.Equal(readingTS))
	assert.Equal(t, accel, candidates[0].Payload["accel_g"])
	assert.Equal(t, lat, candidates[0].Payload["lat"])
	assert.Equal(t, lon, candidates[0].Payload["lon"])
}

func TestDetectImpactsDistinctReadings(t *testing.T) {
	now := time.Now().UTC()
	ts1 := now.Add(-3 * time.Minute)
	ts2 := now.Add(-1 * time.Minute)
	accel := 3.5

	telemetry := &fakeTelemetryRepo{
		highAccel: []*model.TelemetryReading{
			{DeviceID: "veh-001", TS: ts1, AccelG: &accel},
			{DeviceID: "veh-001", TS: ts2, AccelG: &accel},
		},
	}
	engine := newTestEngine(&fakeDeviceRepo{}, telemetry)

	candidates := engine.Evaluate(context.Background(), now)

	// Two spikes at different timestamps are two distinct incidents.
	require.Len(t, candidates, 2)
	assert.True(t, candidates[0].TS.Equal(ts1))
	assert.True(t, candidates[1].TS.Equal(ts2))
}

func TestEvaluateRuleFailureIsolation(t *testing.T) {
	now := time.Now().UTC()
	lastSeen := now.Add(-time.Hour)

	devices := &fakeDeviceRepo{
		staleDevices: []*model.Device{
			{ID: "veh-001", Status: model.DeviceStatusOnline, LastSeenAt: &lastSeen},
		},
	}
	telemetry := &fakeTelemetryRepo{
		batteryErr:   context.DeadlineExceeded,
		highAccelErr: context.DeadlineExceeded,
	}
	engine := newTestEngine(devices, telemetry)

	candidates := engine.Evaluate(context.Background(), now)

	// The stale rule still runs even though the other rules failed.
	require.Len(t, candidates, 1)
	assert.Equal(t, model.EventTypeStale, candidates[0].Type)
}
