// Package audit records booking-domain events and renders admin reports.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"citago/internal/db"
)

// EventStore is the persistence surface for audit events.
type EventStore interface {
	InsertAuditEvent(ctx context.Context, ev db.AuditEvent) error
	ListAuditEvents(ctx context.Context, since time.Time) ([]db.AuditEvent, error)
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service records events best-effort and manages retention.
type Service struct {
	store         EventStore
	retentionDays int
	logger        *zerolog.Logger
}

// NewService creates an audit service. retentionDays <= 0 defaults to 31.
func NewService(store EventStore, retentionDays int, logger *zerolog.Logger) *Service {
	if retentionDays <= 0 {
		retentionDays = 31
	}
	return &Service{store: store, retentionDays: retentionDays, logger: logger}
}

// Record stores an event. Failures are logged, never propagated: the audit
// trail must not fail the operation it observes.
func (s *Service) Record(ctx context.Context, eventType, appointmentID, actorID, details string) {
	ev := db.AuditEvent{
		EventType:     eventType,
		AppointmentID: appointmentID,
		ActorID:       actorID,
		Details:       details,
	}
	if err := s.store.InsertAuditEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to record audit event")
	}
}

// Cleanup deletes events older than the retention period.
func (s *Service) Cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.DeleteAuditEventsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit cleanup failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("cleaned up old audit events")
	}
}

// RunCleanupLoop periodically applies retention until the context is done.
func (s *Service) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}
