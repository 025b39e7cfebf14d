// internal/rules/gate.go
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
)

// Gate enforces incident deduplication before a candidate is persisted.
//
// For most rule types the invariant is at most one open event per
// (device, type): a candidate is suppressed while an unacknowledged event
// of the same type exists. IMPACT candidates are keyed by their reading
// timestamp instead — they are suppressed only by an event at that exact
// (device, type, ts), regardless of acknowledgement.
//
// The check-then-insert is not atomic across concurrent schedulers; the
// partial unique indexes in the schema back it up, and a unique violation
// on insert is folded into suppression.
type Gate struct {
	events repository.EventRepository
	logger *zap.Logger
}

// NewGate creates a deduplication gate
func NewGate(events repository.EventRepository, logger *zap.Logger) *Gate {
	return &Gate{
		events: events,
		logger: logger,
	}
}

// Admit checks a candidate against existing events and persists it when
// accepted. Returns the created event, or nil when suppressed.
func (g *Gate) Admit(ctx context.Context, candidate *model.EventCandidate) (*model.Event, error) {
	suppressed, err := g.isDuplicate(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("dedup check failed: %w", err)
	}
	if suppressed {
		g.logger.Debug("Candidate suppressed as duplicate",
			zap.String("device_id", candidate.DeviceID),
			zap.String("type", string(candidate.Type)),
		)
		return nil, nil
	}

	event := &model.Event{
		ID:       uuid.New(),
		DeviceID: candidate.DeviceID,
		TS:       candidate.TS,
		Type:     candidate.Type,
		Severity: candidate.Severity,
		Payload:  candidate.Payload,
	}
	if event.TS.IsZero() {
		event.TS = time.Now().UTC()
	}

	if err := g.events.Create(ctx, event); err != nil {
		if repository.IsUniqueViolation(err) {
			// Lost the race to a concurrent evaluation pass; the incident
			// is already recorded.
			g.logger.Debug("Candidate lost insert race, treating as suppressed",
				zap.String("device_id", candidate.DeviceID),
				zap.String("type", string(candidate.Type)),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to persist event: %w", err)
	}

	return event, nil
}

// isDuplicate applies the per-type suppression query
func (g *Gate) isDuplicate(ctx context.Context, candidate *model.EventCandidate) (bool, error) {
	if candidate.Type == model.EventTypeImpact {
		return g.events.HasEventAt(ctx, candidate.DeviceID, candidate.Type, candidate.TS)
	}
	return g.events.HasOpenEvent(ctx, candidate.DeviceID, candidate.Type)
}
