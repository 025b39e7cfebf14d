// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fleetpulse/internal/model"
)

// ErrNotFound is wrapped by repositories when a requested row does not
// exist, so callers can map it to a 404 without string matching.
var ErrNotFound = errors.New("not found")

// DeviceRepository defines device data access operations
type DeviceRepository interface {
	// CRUD operations
	Create(ctx context.Context, device *model.Device) error
	GetByID(ctx context.Context, id string) (*model.Device, error)
	Update(ctx context.Context, device *model.Device) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *DeviceFilter) ([]*model.Device, error)

	// Ingestion side effects
	UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error

	// Evaluation queries
	ListStale(ctx context.Context, olderThan time.Time) ([]*model.Device, error)
	MarkOfflineBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// TelemetryRepository defines telemetry data access operations.
// Readings are append-only; there are no update or delete operations.
type TelemetryRepository interface {
	Create(ctx context.Context, reading *model.TelemetryReading) error
	ListByDevice(ctx context.Context, deviceID string, from, to *time.Time, limit int) ([]*model.TelemetryReading, error)
	GetLatest(ctx context.Context, deviceID string) (*model.TelemetryReading, error)

	// Evaluation queries
	LatestBatteryReadings(ctx context.Context) ([]*model.LatestBatteryReading, error)
	ListHighAcceleration(ctx context.Context, since time.Time, thresholdG float64) ([]*model.TelemetryReading, error)
}

// EventRepository defines incident event data access operations
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context, filter *EventFilter) ([]*model.Event, error)
	Acknowledge(ctx context.Context, id uuid.UUID, by string, at time.Time) (*model.Event, error)

	// Deduplication queries
	HasOpenEvent(ctx context.Context, deviceID string, eventType model.EventType) (bool, error)
	HasEventAt(ctx context.Context, deviceID string, eventType model.EventType, ts time.Time) (bool, error)
}

// DeviceFilter represents device listing filters
type DeviceFilter struct {
	City   *string             `json:"city,omitempty"`
	Status *model.DeviceStatus `json:"status,omitempty"`
	Skip   int                 `json:"skip"`
	Limit  int                 `json:"limit"`
}

// EventFilter represents event listing filters
type EventFilter struct {
	DeviceID     *string              `json:"device_id,omitempty"`
	Severity     *model.EventSeverity `json:"severity,omitempty"`
	Type         *model.EventType     `json:"type,omitempty"`
	Acknowledged *bool                `json:"acknowledged,omitempty"`
	Skip         int                  `json:"skip"`
	Limit        int                  `json:"limit"`
}
