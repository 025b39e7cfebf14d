// internal/service/telemetry_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetpulse/internal/bus"
	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
)

// TelemetryService handles the telemetry ingestion path and reading
// queries. Ingestion is the write side the scheduler later evaluates:
// every accepted reading also refreshes the device's last_seen_at and
// announces the new data on the bus, best-effort.
type TelemetryService struct {
	devices   repository.DeviceRepository
	telemetry repository.TelemetryRepository
	announcer *bus.Publisher
	logger    *zap.Logger
}

// NewTelemetryService creates a new telemetry service
func NewTelemetryService(
	devices repository.DeviceRepository,
	telemetry repository.TelemetryRepository,
	announcer *bus.Publisher,
	logger *zap.Logger,
) *TelemetryService {
	return &TelemetryService{
		devices:   devices,
		telemetry: telemetry,
		announcer: announcer,
		logger:    logger,
	}
}

// IngestRequest represents a telemetry ingestion request
type IngestRequest struct {
	DeviceID   string    `json:"device_id" binding:"required"`
	TS         time.Time `json:"ts" binding:"required"`
	Lat        *float64  `json:"lat"`
	Lon        *float64  `json:"lon"`
	BatteryPct *int16    `json:"battery_pct" binding:"omitempty,gte=0,lte=100"`
	SpeedMPS   *float64  `json:"speed_mps"`
	TempC      *float64  `json:"temp_c"`
	AccelG     *float64  `json:"accel_g"`
}

// Ingest stores a telemetry reading, marks the device seen, and announces
// the new data on the bus. The announce never fails the ingest.
func (s *TelemetryService) Ingest(ctx context.Context, req *IngestRequest) (*model.TelemetryReading, error) {
	if _, err := s.devices.GetByID(ctx, req.DeviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to verify device: %w", err)
	}

	reading := &model.TelemetryReading{
		DeviceID:   req.DeviceID,
		TS:         req.TS,
		Lat:        req.Lat,
		Lon:        req.Lon,
		BatteryPct: req.BatteryPct,
		SpeedMPS:   req.SpeedMPS,
		TempC:      req.TempC,
		AccelG:     req.AccelG,
	}

	if err := s.telemetry.Create(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to store reading: %w", err)
	}

	if err := s.devices.UpdateLastSeen(ctx, req.DeviceID, req.TS); err != nil {
		s.logger.Error("Failed to update device last_seen_at",
			zap.Error(err),
			zap.String("device_id", req.DeviceID),
		)
	}

	if s.announcer != nil {
		s.announcer.AnnounceTelemetry(ctx, req.DeviceID)
	}

	return reading, nil
}

// GetDeviceTelemetry returns readings for a device within a time window
func (s *TelemetryService) GetDeviceTelemetry(ctx context.Context, deviceID string, from, to *time.Time, limit int) ([]*model.TelemetryReading, error) {
	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to verify device: %w", err)
	}

	if limit <= 0 {
		limit = 1000
	}
	return s.telemetry.ListByDevice(ctx, deviceID, from, to, limit)
}

// GetLatestReading returns the most recent reading for a device, or nil
// when the device has never reported.
func (s *TelemetryService) GetLatestReading(ctx context.Context, deviceID string) (*model.TelemetryReading, error) {
	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to verify device: %w", err)
	}

	return s.telemetry.GetLatest(ctx, deviceID)
}
