// internal/model/telemetry.go
package model

import "time"

// TelemetryReading represents a single immutable telemetry sample.
// Readings are append-only; once written they are never updated.
type TelemetryReading struct {
	ID         int64      `json:"id" db:"id"`
	DeviceID   string     `json:"device_id" db:"device_id"`
	TS         time.Time  `json:"ts" db:"ts"`
	Lat        *float64   `json:"lat" db:"lat"`
	Lon        *float64   `json:"lon" db:"lon"`
	BatteryPct *int16     `json:"battery_pct" db:"battery_pct"`
	SpeedMPS   *float64   `json:"speed_mps" db:"speed_mps"`
	TempC      *float64   `json:"temp_c" db:"temp_c"`
	AccelG     *float64   `json:"accel_g" db:"accel_g"`
}

// LatestBatteryReading is the projection used by the low-battery rule:
// the most recent reading per device that carries a battery level.
type LatestBatteryReading struct {
	DeviceID   string    `json:"device_id" db:"device_id"`
	BatteryPct int16     `json:"battery_pct" db:"battery_pct"`
	TS         time.Time `json:"ts" db:"ts"`
}
