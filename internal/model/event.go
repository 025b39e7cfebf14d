// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of incident event. The set is open:
// rules may introduce new types without a schema change.
type EventType string

const (
	EventTypeLowBattery EventType = "LOW_BATTERY"
	EventTypeStale      EventType = "STALE"
	EventTypeImpact     EventType = "IMPACT"
	EventTypeGeofence   EventType = "GEOFENCE"
)

// EventSeverity represents how serious an incident is
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event represents a derived incident record with an open/acknowledged
// lifecycle. An event with a nil AcknowledgedAt is open; at most one open
// event may exist per (device_id, type), except for IMPACT events which
// are keyed by their exact reading timestamp instead.
type Event struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	DeviceID       string        `json:"device_id" db:"device_id"`
	TS             time.Time     `json:"ts" db:"ts"`
	Type           EventType     `json:"type" db:"type"`
	Severity       EventSeverity `json:"severity" db:"severity"`
	Payload        JSONObject    `json:"payload" db:"payload"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at" db:"acknowledged_at"`
	AcknowledgedBy *string       `json:"acknowledged_by" db:"acknowledged_by"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// IsOpen reports whether the event has not been acknowledged yet
func (e *Event) IsOpen() bool {
	return e.AcknowledgedAt == nil
}

// EventCandidate is a potential incident produced by a detection rule,
// not yet checked against existing open events.
type EventCandidate struct {
	DeviceID string        `json:"device_id"`
	Type     EventType     `json:"type"`
	Severity EventSeverity `json:"severity"`
	Payload  JSONObject    `json:"payload"`
	TS       time.Time     `json:"ts"`
}
