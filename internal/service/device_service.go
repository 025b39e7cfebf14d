// internal/service/device_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
)

// Service-level sentinel errors, mapped to HTTP status codes by handlers
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceExists   = errors.New("device already exists")
	ErrEventNotFound  = errors.New("event not found")
)

// DeviceService handles device fleet business logic
type DeviceService struct {
	devices repository.DeviceRepository
	logger  *zap.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(devices repository.DeviceRepository, logger *zap.Logger) *DeviceService {
	return &DeviceService{
		devices: devices,
		logger:  logger,
	}
}

// RegisterDeviceRequest represents a device registration request
type RegisterDeviceRequest struct {
	ID              string           `json:"id" binding:"required"`
	Name            string           `json:"name" binding:"required"`
	Model           string           `json:"model" binding:"required"`
	FirmwareVersion *string          `json:"firmware_version"`
	City            *string          `json:"city"`
	Metadata        model.JSONObject `json:"metadata"`
}

// UpdateDeviceRequest represents a partial device update
type UpdateDeviceRequest struct {
	Name            *string             `json:"name"`
	Model           *string             `json:"model"`
	FirmwareVersion *string             `json:"firmware_version"`
	City            *string             `json:"city"`
	Status          *model.DeviceStatus `json:"status"`
}

// RegisterDevice registers a new device in the fleet
func (s *DeviceService) RegisterDevice(ctx context.Context, req *RegisterDeviceRequest) (*model.Device, error) {
	if _, err := s.devices.GetByID(ctx, req.ID); err == nil {
		return nil, ErrDeviceExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing device: %w", err)
	}

	device := &model.Device{
		ID:              req.ID,
		Name:            req.Name,
		Model:           req.Model,
		FirmwareVersion: req.FirmwareVersion,
		City:            req.City,
		Status:          model.DeviceStatusOffline,
		Metadata:        req.Metadata,
	}

	if err := s.devices.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	return s.GetDevice(ctx, req.ID)
}

// GetDevice returns a device by id
func (s *DeviceService) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return device, nil
}

// ListDevices returns devices matching the filter
func (s *DeviceService) ListDevices(ctx context.Context, filter *repository.DeviceFilter) ([]*model.Device, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.devices.List(ctx, filter)
}

// UpdateDevice applies a partial update to a device
func (s *DeviceService) UpdateDevice(ctx context.Context, id string, req *UpdateDeviceRequest) (*model.Device, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		device.Name = *req.Name
	}
	if req.Model != nil {
		device.Model = *req.Model
	}
	if req.FirmwareVersion != nil {
		device.FirmwareVersion = req.FirmwareVersion
	}
	if req.City != nil {
		device.City = req.City
	}
	if req.Status != nil {
		device.Status = *req.Status
	}

	if err := s.devices.Update(ctx, device); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to update device: %w", err)
	}

	return device, nil
}

// DeleteDevice removes a device and all of its readings and events
func (s *DeviceService) DeleteDevice(ctx context.Context, id string) error {
	if err := s.devices.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}
