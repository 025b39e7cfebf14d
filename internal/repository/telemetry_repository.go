// internal/repository/telemetry_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetpulse/internal/database"
	"fleetpulse/internal/model"
)

// telemetryRepository implements TelemetryRepository interface
type telemetryRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewTelemetryRepository creates a new telemetry repository
func NewTelemetryRepository(db *database.DB, logger *zap.Logger) TelemetryRepository {
	return &telemetryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a telemetry reading
func (r *telemetryRepository) Create(ctx context.Context, reading *model.TelemetryReading) error {
	query := `
		INSERT INTO telemetry_readings (device_id, ts, lat, lon, battery_pct, speed_mps, temp_c, accel_g)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		reading.DeviceID, reading.TS, reading.Lat, reading.Lon,
		reading.BatteryPct, reading.SpeedMPS, reading.TempC, reading.AccelG,
	).Scan(&reading.ID)

	if err != nil {
		r.logger.Error("Failed to insert telemetry reading",
			zap.Error(err),
			zap.String("device_id", reading.DeviceID),
		)
		return fmt.Errorf("failed to insert telemetry reading: %w", err)
	}

	return nil
}

// ListByDevice returns readings for a device within an optional time window,
// newest first.
func (r *telemetryRepository) ListByDevice(ctx context.Context, deviceID string, from, to *time.Time, limit int) ([]*model.TelemetryReading, error) {
	query := `
		SELECT id, device_id, ts, lat, lon, battery_pct, speed_mps, temp_c, accel_g
		FROM telemetry_readings
		WHERE device_id = $1
	`

	args := []interface{}{deviceID}
	argPos := 2

	if from != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argPos)
		args = append(args, *from)
		argPos++
	}
	if to != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argPos)
		args = append(args, *to)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list telemetry readings", zap.Error(err), zap.String("device_id", deviceID))
		return nil, fmt.Errorf("failed to list telemetry readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// GetLatest returns the most recent reading for a device, or nil when the
// device has no readings at all.
func (r *telemetryRepository) GetLatest(ctx context.Context, deviceID string) (*model.TelemetryReading, error) {
	query := `
		SELECT id, device_id, ts, lat, lon, battery_pct, speed_mps, temp_c, accel_g
		FROM telemetry_readings
		WHERE device_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	reading := &model.TelemetryReading{}
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&reading.ID, &reading.DeviceID, &reading.TS, &reading.Lat, &reading.Lon,
		&reading.BatteryPct, &reading.SpeedMPS, &reading.TempC, &reading.AccelG,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get latest reading", zap.Error(err), zap.String("device_id", deviceID))
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	return reading, nil
}

// LatestBatteryReadings returns, per device, the most recent reading that
// carries a battery level. DISTINCT ON gives a deterministic pick when two
// readings share a timestamp within one evaluation pass.
func (r *telemetryRepository) LatestBatteryReadings(ctx context.Context) ([]*model.LatestBatteryReading, error) {
	query := `
		SELECT DISTINCT ON (device_id) device_id, battery_pct, ts
		FROM telemetry_readings
		WHERE battery_pct IS NOT NULL
		ORDER BY device_id, ts DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query latest battery readings", zap.Error(err))
		return nil, fmt.Errorf("failed to query latest battery readings: %w", err)
	}
	defer rows.Close()

	var readings []*model.LatestBatteryReading
	for rows.Next() {
		reading := &model.LatestBatteryReading{}
		if err := rows.Scan(&reading.DeviceID, &reading.BatteryPct, &reading.TS); err != nil {
			return nil, fmt.Errorf("failed to scan battery reading row: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("battery reading rows iteration error: %w", err)
	}

	return readings, nil
}

// ListHighAcceleration returns readings at or above the acceleration
// threshold recorded since the given time.
func (r *telemetryRepository) ListHighAcceleration(ctx context.Context, since time.Time, thresholdG float64) ([]*model.TelemetryReading, error) {
	query := `
		SELECT id, device_id, ts, lat, lon, battery_pct, speed_mps, temp_c, accel_g
		FROM telemetry_readings
		WHERE ts >= $1 AND accel_g >= $2
	`

	rows, err := r.db.QueryContext(ctx, query, since, thresholdG)
	if err != nil {
		r.logger.Error("Failed to query high acceleration readings", zap.Error(err))
		return nil, fmt.Errorf("failed to query high acceleration readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// scanReadings scans telemetry rows into models
func scanReadings(rows *sql.Rows) ([]*model.TelemetryReading, error) {
	var readings []*model.TelemetryReading
	for rows.Next() {
		reading := &model.TelemetryReading{}
		err := rows.Scan(
			&reading.ID, &reading.DeviceID, &reading.TS, &reading.Lat, &reading.Lon,
			&reading.BatteryPct, &reading.SpeedMPS, &reading.TempC, &reading.AccelG,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan telemetry row: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("telemetry rows iteration error: %w", err)
	}

	return readings, nil
}
