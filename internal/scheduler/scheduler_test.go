// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetpulse/internal/config"
	"fleetpulse/internal/hub"
	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
	"fleetpulse/internal/rules"
)

type stubDeviceRepo struct {
	repository.DeviceRepository

	staleDevices []*model.Device

	markedOffline int64
	markErr       error
	markCutoff    time.Time
}

func (s *stubDeviceRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*model.Device, error) {
	return s.staleDevices, nil
}

func (s *stubDeviceRepo) MarkOfflineBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	s.markCutoff = olderThan
	if s.markErr != nil {
		return 0, s.markErr
	}
	return s.markedOffline, nil
}

type stubTelemetryRepo struct {
	repository.TelemetryRepository

	batteryReadings []*model.LatestBatteryReading
}

func (s *stubTelemetryRepo) LatestBatteryReadings(ctx context.Context) ([]*model.LatestBatteryReading, error) {
	return s.batteryReadings, nil
}

func (s *stubTelemetryRepo) ListHighAcceleration(ctx context.Context, since time.Time, thresholdG float64) ([]*model.TelemetryReading, error) {
	return nil, nil
}

type stubEventRepo struct {
	repository.EventRepository

	created []*model.Event
	open    map[string]bool
}

func (s *stubEventRepo) Create(ctx context.Context, event *model.Event) error {
	s.created = append(s.created, event)
	return nil
}

func (s *stubEventRepo) HasOpenEvent(ctx context.Context, deviceID string, eventType model.EventType) (bool, error) {
	return s.open[deviceID+"/"+string(eventType)], nil
}

func (s *stubEventRepo) HasEventAt(ctx context.Context, deviceID string, eventType model.EventType, ts time.Time) (bool, error) {
	return false, nil
}

func testSchedulerConfig() *config.SchedulerConfig {
	return &config.SchedulerConfig{
		DetectInterval:   time.Minute,
		StatusInterval:   time.Minute,
		OfflineThreshold: 15 * time.Minute,
		TickTimeout:      30 * time.Second,
	}
}

func newTestScheduler(devices *stubDeviceRepo, telemetry *stubTelemetryRepo, events *stubEventRepo) (*Scheduler, *hub.Hub) {
	logger := zap.NewNop()
	h := hub.New(logger)
	engine := rules.NewEngine(devices, telemetry, &config.RulesConfig{
		LowBatteryThreshold:  20,
		CriticalBatteryLevel: 10,
		StaleDeviceThreshold: 15 * time.Minute,
		ImpactThresholdG:     3.0,
		ImpactLookback:       5 * time.Minute,
	}, logger)
	gate := rules.NewGate(events, logger)

	return New(engine, gate, devices, h, testSchedulerConfig(), logger), h
}

func subscribedClient(t *testing.T, h *hub.Hub, channel string) *hub.Client {
	t.Helper()
	client := hub.NewClient("observer", "test-agent", "127.0.0.1:1")
	h.Register(client)
	h.Subscribe(client.ID, []string{channel})
	return client
}

func receiveMessage(t *testing.T, client *hub.Client) *hub.Message {
	t.Helper()
	select {
	case data := <-client.Send:
		var msg hub.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	default:
		t.Fatal("expected a broadcast message")
		return nil
	}
}

func TestDetectIncidentsBroadcastsCreatedCount(t *testing.T) {
	now := time.Now().UTC()
	telemetry := &stubTelemetryRepo{
		batteryReadings: []*model.LatestBatteryReading{
			{DeviceID: "veh-001", BatteryPct: 5, TS: now},
			{DeviceID: "veh-002", BatteryPct: 15, TS: now},
		},
	}
	events := &stubEventRepo{open: map[string]bool{}}
	s, h := newTestScheduler(&stubDeviceRepo{}, telemetry, events)
	client := subscribedClient(t, h, hub.ChannelEvents)

	created, err := s.DetectIncidents(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, created)
	require.Len(t, events.created, 2)

	msg := receiveMessage(t, client)
	assert.Equal(t, hub.TypeEventsUpdated, msg.Type)
	assert.Equal(t, 2, msg.Count)
}

func TestDetectIncidentsNoBroadcastWhenAllSuppressed(t *testing.T) {
	now := time.Now().UTC()
	telemetry := &stubTelemetryRepo{
		batteryReadings: []*model.LatestBatteryReading{
			{DeviceID: "veh-001", BatteryPct: 5, TS: now},
		},
	}
	events := &stubEventRepo{open: map[string]bool{"veh-001/LOW_BATTERY": true}}
	s, h := newTestScheduler(&stubDeviceRepo{}, telemetry, events)
	client := subscribedClient(t, h, hub.ChannelEvents)

	created, err := s.DetectIncidents(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Empty(t, events.created)

	select {
	case data := <-client.Send:
		t.Fatalf("unexpected broadcast: %s", data)
	default:
	}
}

func TestDetectIncidentsIsIdempotentAcrossTicks(t *testing.T) {
	now := time.Now().UTC()
	telemetry := &stubTelemetryRepo{
		batteryReadings: []*model.LatestBatteryReading{
			{DeviceID: "veh-001", BatteryPct: 5, TS: now},
		},
	}
	events := &stubEventRepo{open: map[string]bool{}}
	s, _ := newTestScheduler(&stubDeviceRepo{}, telemetry, events)

	created, err := s.DetectIncidents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// The created event is still open on the next tick.
	events.open["veh-001/LOW_BATTERY"] = true

	created, err = s.DetectIncidents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, events.created, 1)
}

func TestUpdateDeviceStatusBroadcastsOnTransition(t *testing.T) {
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	devices := &stubDeviceRepo{markedOffline: 3}
	s, h := newTestScheduler(devices, &stubTelemetryRepo{}, &stubEventRepo{open: map[string]bool{}})
	s.SetNow(func() time.Time { return fixed })
	client := subscribedClient(t, h, hub.ChannelDevices)

	updated, err := s.UpdateDeviceStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.True(t, devices.markCutoff.Equal(fixed.Add(-15*time.Minute)))

	msg := receiveMessage(t, client)
	assert.Equal(t, hub.TypeDeviceStatusUpdated, msg.Type)
}

func TestUpdateDeviceStatusNoBroadcastWithoutChange(t *testing.T) {
	devices := &stubDeviceRepo{markedOffline: 0}
	s, h := newTestScheduler(devices, &stubTelemetryRepo{}, &stubEventRepo{open: map[string]bool{}})
	client := subscribedClient(t, h, hub.ChannelDevices)

	updated, err := s.UpdateDeviceStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	select {
	case data := <-client.Send:
		t.Fatalf("unexpected broadcast: %s", data)
	default:
	}
}

func TestUpdateDeviceStatusPropagatesError(t *testing.T) {
	devices := &stubDeviceRepo{markErr: context.DeadlineExceeded}
	s, _ := newTestScheduler(devices, &stubTelemetryRepo{}, &stubEventRepo{open: map[string]bool{}})

	_, err := s.UpdateDeviceStatus(context.Background())
	require.Error(t, err)
}
