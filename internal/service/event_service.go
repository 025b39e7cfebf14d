// internal/service/event_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
)

// EventService handles incident event queries and acknowledgement.
// Events are only ever created by the evaluation pipeline; this service
// exposes the read side and the open-to-acknowledged transition.
type EventService struct {
	events repository.EventRepository
	logger *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(events repository.EventRepository, logger *zap.Logger) *EventService {
	return &EventService{
		events: events,
		logger: logger,
	}
}

// AcknowledgeRequest represents an event acknowledgement request
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" binding:"required"`
}

// ListEvents returns events matching the filter
func (s *EventService) ListEvents(ctx context.Context, filter *repository.EventFilter) ([]*model.Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.events.List(ctx, filter)
}

// GetEvent returns an event by id
func (s *EventService) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

// AcknowledgeEvent closes an open event. Once acknowledged the event no
// longer suppresses new incidents of its type for the device.
func (s *EventService) AcknowledgeEvent(ctx context.Context, id uuid.UUID, by string) (*model.Event, error) {
	event, err := s.events.Acknowledge(ctx, id, by, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to acknowledge event: %w", err)
	}
	return event, nil
}
