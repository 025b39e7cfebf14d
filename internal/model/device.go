// internal/model/device.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DeviceStatus represents the current status of a device
type DeviceStatus string

const (
	DeviceStatusOnline   DeviceStatus = "online"
	DeviceStatusOffline  DeviceStatus = "offline"
	DeviceStatusDegraded DeviceStatus = "degraded"
)

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Device represents a telemetry-emitting device in the fleet
type Device struct {
	ID              string       `json:"id" db:"id"`
	Name            string       `json:"name" db:"name"`
	Model           string       `json:"model" db:"model"`
	FirmwareVersion *string      `json:"firmware_version" db:"firmware_version"`
	City            *string      `json:"city" db:"city"`
	Status          DeviceStatus `json:"status" db:"status"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	LastSeenAt      *time.Time   `json:"last_seen_at" db:"last_seen_at"`
	Metadata        JSONObject   `json:"metadata" db:"metadata"`
}

// IsOnline checks if the device is currently online
func (d *Device) IsOnline() bool {
	return d.Status == DeviceStatusOnline
}
