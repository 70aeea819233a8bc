package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "esupervision/pkg/domain"
	txcontext "esupervision/pkg/platform/tx"
)

// PostgresStore persists audit facts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var checkinID *uuid.UUID
	if !event.CheckinID.IsNil() {
		raw := uuid.UUID(event.CheckinID)
		checkinID = &raw
	}
	query := `
		INSERT INTO audit_events (
			id, event_type, offender_id, checkin_id, practitioner_id,
			comment, time_to_submit_seconds, time_to_review_seconds, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(event.Type),
		uuid.UUID(event.OffenderID),
		checkinID,
		string(event.PractitionerID),
		event.Comment,
		int64(event.TimeToSubmit.Seconds()),
		int64(event.TimeToReview.Seconds()),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByOffender(ctx context.Context, offenderID id.OffenderID) ([]Event, error) {
	return s.list(ctx, `offender_id = $1`, uuid.UUID(offenderID))
}

func (s *PostgresStore) ListByCheckin(ctx context.Context, checkinID id.CheckinID) ([]Event, error) {
	return s.list(ctx, `checkin_id = $1`, uuid.UUID(checkinID))
}

func (s *PostgresStore) list(ctx context.Context, predicate string, arg any) ([]Event, error) {
	query := `
		SELECT event_type, offender_id, checkin_id, practitioner_id,
		       comment, time_to_submit_seconds, time_to_review_seconds, occurred_at
		FROM audit_events
		WHERE ` + predicate + `
		ORDER BY occurred_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event          Event
			eventType      string
			rawOffender    uuid.UUID
			rawCheckin     *uuid.UUID
			practitionerID string
			submitSecs     int64
			reviewSecs     int64
		)
		err := rows.Scan(
			&eventType,
			&rawOffender,
			&rawCheckin,
			&practitionerID,
			&event.Comment,
			&submitSecs,
			&reviewSecs,
			&event.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Type = EventType(eventType)
		event.OffenderID = id.OffenderID(rawOffender)
		if rawCheckin != nil {
			event.CheckinID = id.CheckinID(*rawCheckin)
		}
		event.PractitionerID = id.PractitionerID(practitionerID)
		event.TimeToSubmit = secondsToDuration(submitSecs)
		event.TimeToReview = secondsToDuration(reviewSecs)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func secondsToDuration(secs int64) time.Duration {
	return time.Duration(secs) * time.Second
}
