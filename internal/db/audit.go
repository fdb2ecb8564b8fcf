package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditEvent is one recorded booking-domain event.
type AuditEvent struct {
	ID            int64
	EventType     string
	AppointmentID string
	ActorID       string
	Details       string
	CreatedAt     time.Time
}

// InsertAuditEvent records an event.
func (db *DB) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, appointment_id, actor_id, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.EventType, nullable(ev.AppointmentID), nullable(ev.ActorID), nullable(ev.Details), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns events created at or after since, oldest first.
func (db *DB) ListAuditEvents(ctx context.Context, since time.Time) ([]AuditEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, event_type, appointment_id, actor_id, details, created_at
		FROM audit_events
		WHERE created_at >= ?
		ORDER BY created_at`,
		since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var apptID, actorID, details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.EventType, &apptID, &actorID, &details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.AppointmentID = apptID.String
		ev.ActorID = actorID.String
		ev.Details = details.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

// DeleteAuditEventsBefore removes events older than cutoff.
func (db *DB) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return res.RowsAffected()
}
