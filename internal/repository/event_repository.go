// internal/repository/event_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"fleetpulse/internal/database"
	"fleetpulse/internal/model"
)

// eventRepository implements EventRepository interface
type eventRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *database.DB, logger *zap.Logger) EventRepository {
	return &eventRepository{
		db:     db,
		logger: logger,
	}
}

// IsUniqueViolation reports whether the error is a postgres unique
// constraint violation. The dedup gate relies on this to treat a lost
// check-then-insert race as a suppression rather than a failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Create persists an incident event
func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	query := `
		INSERT INTO events (id, device_id, ts, type, severity, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.DeviceID, event.TS, event.Type, event.Severity, event.Payload,
	)

	if err != nil {
		if !IsUniqueViolation(err) {
			r.logger.Error("Failed to create event",
				zap.Error(err),
				zap.String("device_id", event.DeviceID),
				zap.String("type", string(event.Type)),
			)
		}
		return fmt.Errorf("failed to create event: %w", err)
	}

	r.logger.Info("Event created",
		zap.String("event_id", event.ID.String()),
		zap.String("device_id", event.DeviceID),
		zap.String("type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
	)
	return nil
}

// GetByID retrieves an event by its ID
func (r *eventRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `
		SELECT id, device_id, ts, type, severity, payload,
			   acknowledged_at, acknowledged_by, created_at
		FROM events WHERE id = $1
	`

	event := &model.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.DeviceID, &event.TS, &event.Type, &event.Severity,
		&event.Payload, &event.AcknowledgedAt, &event.AcknowledgedBy, &event.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event not found with id %s: %w", id, ErrNotFound)
		}
		r.logger.Error("Failed to get event by ID", zap.Error(err), zap.String("event_id", id.String()))
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// List retrieves events with optional filters, newest first
func (r *eventRepository) List(ctx context.Context, filter *EventFilter) ([]*model.Event, error) {
	query := `
		SELECT id, device_id, ts, type, severity, payload,
			   acknowledged_at, acknowledged_by, created_at
		FROM events
	`

	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.DeviceID != nil {
		conditions = append(conditions, fmt.Sprintf("device_id = $%d", argPos))
		args = append(args, *filter.DeviceID)
		argPos++
	}
	if filter.Severity != nil {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argPos))
		args = append(args, *filter.Severity)
		argPos++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, *filter.Type)
		argPos++
	}
	if filter.Acknowledged != nil {
		if *filter.Acknowledged {
			conditions = append(conditions, "acknowledged_at IS NOT NULL")
		} else {
			conditions = append(conditions, "acknowledged_at IS NULL")
		}
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += fmt.Sprintf(" ORDER BY ts DESC OFFSET $%d LIMIT $%d", argPos, argPos+1)
	args = append(args, filter.Skip, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list events", zap.Error(err))
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		event := &model.Event{}
		err := rows.Scan(
			&event.ID, &event.DeviceID, &event.TS, &event.Type, &event.Severity,
			&event.Payload, &event.AcknowledgedAt, &event.AcknowledgedBy, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event rows iteration error: %w", err)
	}

	return events, nil
}

// Acknowledge transitions an event from open to acknowledged and returns
// the updated row.
func (r *eventRepository) Acknowledge(ctx context.Context, id uuid.UUID, by string, at time.Time) (*model.Event, error) {
	query := `
		UPDATE events SET acknowledged_at = $2, acknowledged_by = $3
		WHERE id = $1
		RETURNING id, device_id, ts, type, severity, payload,
				  acknowledged_at, acknowledged_by, created_at
	`

	event := &model.Event{}
	err := r.db.QueryRowContext(ctx, query, id, at, by).Scan(
		&event.ID, &event.DeviceID, &event.TS, &event.Type, &event.Severity,
		&event.Payload, &event.AcknowledgedAt, &event.AcknowledgedBy, &event.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event not found with id %s: %w", id, ErrNotFound)
		}
		r.logger.Error("Failed to acknowledge event", zap.Error(err), zap.String("event_id", id.String()))
		return nil, fmt.Errorf("failed to acknowledge event: %w", err)
	}

	r.logger.Info("Event acknowledged",
		zap.String("event_id", id.String()),
		zap.String("acknowledged_by", by),
	)
	return event, nil
}

// HasOpenEvent checks whether an unacknowledged event of the given type
// already exists for the device.
func (r *eventRepository) HasOpenEvent(ctx context.Context, deviceID string, eventType model.EventType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM events
			WHERE device_id = $1 AND type = $2 AND acknowledged_at IS NULL
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, deviceID, eventType).Scan(&exists); err != nil {
		r.logger.Error("Failed to check open event", zap.Error(err), zap.String("device_id", deviceID))
		return false, fmt.Errorf("failed to check open event: %w", err)
	}

	return exists, nil
}

// HasEventAt checks whether an event of the given type exists for the
// device at the exact timestamp, regardless of acknowledgement state.
func (r *eventRepository) HasEventAt(ctx context.Context, deviceID string, eventType model.EventType, ts time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM events
			WHERE device_id = $1 AND type = $2 AND ts = $3
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, deviceID, eventType, ts).Scan(&exists); err != nil {
		r.logger.Error("Failed to check event at timestamp", zap.Error(err), zap.String("device_id", deviceID))
		return false, fmt.Errorf("failed to check event at timestamp: %w", err)
	}

	return exists, nil
}
