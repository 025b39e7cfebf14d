// internal/repository/device_repository.go
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

// deviceRepository implements DeviceRepository interface
type deviceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *database.DB, logger *zap.Logger) DeviceRepository {
	return &deviceRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new device
func (r *deviceRepository) Create(ctx context.Context, device *model.Device) error {
	query := `
		INSERT INTO devices (id, name, model, firmware_version, city, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		device.ID, device.Name, device.Model, device.FirmwareVersion,
		device.City, device.Status, device.Metadata,
	)

	if err != nil {
		r.logger.Error("Failed to create device", zap.Error(err), zap.String("device_id", device.ID))
		return fmt.Errorf("failed to create device: %w", err)
	}

	r.logger.Info("Device created successfully", zap.String("device_id", device.ID))
	return nil
}

// GetByID retrieves a device by its ID
func (r *deviceRepository) GetByID(ctx context.Context, id string) (*model.Device, error) {
	query := `
		SELECT id, name, model, firmware_version, city, status,
			   created_at, last_seen_at, metadata
		FROM devices WHERE id = $1
	`

	device := &model.Device{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&device.ID, &device.Name, &device.Model, &device.FirmwareVersion,
		&device.City, &device.Status, &device.CreatedAt, &device.LastSeenAt,
		&device.Metadata,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("device not found with id %s: %w", id, ErrNotFound)
		}
		r.logger.Error("Failed to get device by ID", zap.Error(err), zap.String("device_id", id))
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// Update updates an existing device
func (r *deviceRepository) Update(ctx context.Context, device *model.Device) error {
	query := `
		UPDATE devices SET
			name = $2, model = $3, firmware_version = $4, city = $5,
			status = $6, metadata = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		device.ID, device.Name, device.Model, device.FirmwareVersion,
		device.City, device.Status, device.Metadata,
	)

	if err != nil {
		r.logger.Error("Failed to update device", zap.Error(err), zap.String("device_id", device.ID))
		return fmt.Errorf("failed to update device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("device not found with id %s: %w", device.ID, ErrNotFound)
	}

	r.logger.Debug("Device updated successfully", zap.String("device_id", device.ID))
	return nil
}

// Delete removes a device and its readings and events via cascade
func (r *deviceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete device", zap.Error(err), zap.String("device_id", id))
		return fmt.Errorf("failed to delete device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("device not found with id %s: %w", id, ErrNotFound)
	}

	return nil
}

// List retrieves devices with optional filters
func (r *deviceRepository) List(ctx context.Context, filter *DeviceFilter) ([]*model.Device, error) {
	query := `
		SELECT id, name, model, firmware_version, city, status,
			   created_at, last_seen_at, metadata
		FROM devices
	`

	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.City != nil {
		conditions = append(conditions, fmt.Sprintf("city = $%d", argPos))
		args = append(args, *filter.City)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC OFFSET $%d LIMIT $%d", argPos, argPos+1)
	args = append(args, filter.Skip, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list devices", zap.Error(err))
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// UpdateLastSeen records a fresh telemetry report: the device is seen now
// and is therefore online.
func (r *deviceRepository) UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	query := `UPDATE devices SET last_seen_at = $2, status = 'online' WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, seenAt)
	if err != nil {
		r.logger.Error("Failed to update last_seen_at", zap.Error(err), zap.String("device_id", id))
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	return nil
}

// ListStale returns devices that are not offline but have not reported
// since olderThan. Devices that never reported are excluded.
func (r *deviceRepository) ListStale(ctx context.Context, olderThan time.Time) ([]*model.Device, error) {
	query := `
		SELECT id, name, model, firmware_version, city, status,
			   created_at, last_seen_at, metadata
		FROM devices
		WHERE last_seen_at < $1 AND status != 'offline'
	`

	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		r.logger.Error("Failed to list stale devices", zap.Error(err))
		return nil, fmt.Errorf("failed to list stale devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// MarkOfflineBefore transitions every non-offline device last seen before
// olderThan to offline, returning how many rows changed.
func (r *deviceRepository) MarkOfflineBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `UPDATE devices SET status = 'offline' WHERE last_seen_at < $1 AND status != 'offline'`

	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		r.logger.Error("Failed to mark devices offline", zap.Error(err))
		return 0, fmt.Errorf("failed to mark devices offline: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// scanDevices scans device rows into models
func scanDevices(rows *sql.Rows) ([]*model.Device, error) {
	var devices []*model.Device
	for rows.Next() {
		device := &model.Device{}
		err := rows.Scan(
			&device.ID, &device.Name, &device.Model, &device.FirmwareVersion,
			&device.City, &device.Status, &device.CreatedAt, &device.LastSeenAt,
			&device.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("device rows iteration error: %w", err)
	}

	return devices, nil
}
