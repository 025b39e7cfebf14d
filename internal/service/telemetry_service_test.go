// internal/service/telemetry_service_test.go
package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
)

type memDeviceRepo struct {
	repository.DeviceRepository

	devices map[string]*model.Device

	lastSeenID string
	lastSeenAt time.Time
	updateErr  error
	deleted    []string
}

func newMemDeviceRepo(devices ...*model.Device) *memDeviceRepo {
	repo := &memDeviceRepo{devices: make(map[string]*model.Device)}
	for _, d := range devices {
		repo.devices[d.ID] = d
	}
	return repo
}

func (m *memDeviceRepo) Create(ctx context.Context, device *model.Device) error {
	m.devices[device.ID] = device
	return nil
}

func (m *memDeviceRepo) GetByID(ctx context.Context, id string) (*model.Device, error) {
	device, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("device not found with id %s: %w", id, repository.ErrNotFound)
	}
	return device, nil
}

func (m *memDeviceRepo) Update(ctx context.Context, device *model.Device) error {
	if _, ok := m.devices[device.ID]; !ok {
		return fmt.Errorf("device not found with id %s: %w", device.ID, repository.ErrNotFound)
	}
	m.devices[device.ID] = device
	return nil
}

func (m *memDeviceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.devices[id]; !ok {
		return fmt.Errorf("device not found with id %s: %w", id, repository.ErrNotFound)
	}
	delete(m.devices, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memDeviceRepo) UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.lastSeenID = id
	m.lastSeenAt = seenAt
	return nil
}

type memTelemetryRepo struct {
	repository.TelemetryRepository

	readings  []*model.TelemetryReading
	createErr error
}

func (m *memTelemetryRepo) Create(ctx context.Context, reading *model.TelemetryReading) error {
	if m.createErr != nil {
		return m.createErr
	}
	reading.ID = int64(len(m.readings) + 1)
	m.readings = append(m.readings, reading)
	return nil
}

func (m *memTelemetryRepo) GetLatest(ctx context.Context, deviceID string) (*model.TelemetryReading, error) {
	var latest *model.TelemetryReading
	for _, r := range m.readings {
		if r.DeviceID != deviceID {
			continue
		}
		if latest == nil || r.TS.After(latest.TS) {
			latest = r
		}
	}
	return latest, nil
}

func testDevice(id string) *model.Device {
	return &model.Device{
		ID:     id,
		Name:   "Van " + id,
		Model:  "TX-9",
		Status: model.DeviceStatusOnline,
	}
}

func TestIngestStoresReadingAndMarksSeen(t *testing.T) {
	devices := newMemDeviceRepo(testDevice("veh-001"))
	telemetry := &memTelemetryRepo{}
	svc := NewTelemetryService(devices, telemetry, nil, zap.NewNop())

	ts := time.Now().UTC()
	battery := int16(42)

	reading, err := svc.Ingest(context.Background(), &IngestRequest{
		DeviceID:   "veh-001",
		TS:         ts,
		BatteryPct: &battery,
	})

	require.NoError(t, err)
	assert.NotZero(t, reading.ID)
	require.Len(t, telemetry.readings, 1)
	assert.Equal(t, "veh-001", devices.lastSeenID)
	assert.True(t, devices.lastSeenAt.Equal(ts))
}

func TestIngestUnknownDevice(t *testing.T) {
	svc := NewTelemetryService(newMemDeviceRepo(), &memTelemetryRepo{}, nil, zap.NewNop())

	_, err := svc.Ingest(context.Background(), &IngestRequest{
		DeviceID: "ghost",
		TS:       time.Now().UTC(),
	})

	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestIngestSurvivesLastSeenFailure(t *testing.T) {
	devices := newMemDeviceRepo(testDevice("veh-001"))
	devices.updateErr = fmt.Errorf("connection reset")
	telemetry := &memTelemetryRepo{}
	svc := NewTelemetryService(devices, telemetry, nil, zap.NewNop())

	reading, err := svc.Ingest(context.Background(), &IngestRequest{
		DeviceID: "veh-001",
		TS:       time.Now().UTC(),
	})

	// The reading is stored even when the last_seen_at refresh fails.
	require.NoError(t, err)
	assert.NotNil(t, reading)
	require.Len(t, telemetry.readings, 1)
}

func TestGetLatestReadingNilWhenNeverReported(t *testing.T) {
	devices := newMemDeviceRepo(testDevice("veh-001"))
	svc := NewTelemetryService(devices, &memTelemetryRepo{}, nil, zap.NewNop())

	reading, err := svc.GetLatestReading(context.Background(), "veh-001")

	require.NoError(t, err)
	assert.Nil(t, reading)
}
