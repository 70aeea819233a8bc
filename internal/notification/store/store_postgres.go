package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"esupervision/internal/notification/models"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
	txcontext "esupervision/pkg/platform/tx"
)

// PostgresStore persists notification records in PostgreSQL. The channel sum
// type flattens to (channel, recipient) columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const insertNotification = `
	INSERT INTO notifications (
		id, event_type, offender_id, checkin_id, recipient_type,
		channel, recipient, template_id, reference, provider_id, status,
		created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (s *PostgresStore) Save(ctx context.Context, notification models.Notification) error {
	if _, err := s.execer(ctx).ExecContext(ctx, insertNotification, insertArgs(notification)...); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveBatch(ctx context.Context, notifications []models.Notification) error {
	for _, notification := range notifications {
		if err := s.Save(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

func insertArgs(notification models.Notification) []any {
	var checkinID *uuid.UUID
	if !notification.CheckinID.IsNil() {
		raw := uuid.UUID(notification.CheckinID)
		checkinID = &raw
	}
	return []any{
		uuid.UUID(notification.ID),
		notification.EventType,
		uuid.UUID(notification.OffenderID),
		checkinID,
		string(notification.RecipientType),
		string(notification.Channel.Kind()),
		notification.Channel.Recipient(),
		notification.TemplateID,
		notification.Reference,
		notification.ProviderID,
		notification.Status,
		notification.CreatedAt,
		notification.UpdatedAt,
	}
}

func (s *PostgresStore) UpdateOutcome(ctx context.Context, notificationID id.NotificationID, status, providerID string, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications
		SET status = $2, provider_id = $3, updated_at = $4
		WHERE id = $1
	`, uuid.UUID(notificationID), status, providerID, at)
	if err != nil {
		return fmt.Errorf("update notification outcome: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const notificationColumns = `
	id, event_type, offender_id, checkin_id, recipient_type,
	channel, recipient, template_id, reference, provider_id, status,
	created_at, updated_at
`

func (s *PostgresStore) ListUnresolvedSince(ctx context.Context, eventTypes []string, since time.Time) ([]models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE created_at >= $1
		  AND provider_id <> ''
		  AND status NOT IN ('delivered', 'permanent-failure', 'temporary-failure', 'technical-failure')
	`
	args := []any{since}
	if len(eventTypes) > 0 {
		query += ` AND event_type = ANY($2)`
		args = append(args, eventTypes)
	}
	query += ` ORDER BY created_at`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unresolved notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		record, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateStatusBatch(ctx context.Context, ids []id.NotificationID, status string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]string, len(ids))
	for i, nid := range ids {
		raw[i] = nid.String()
	}
	// Terminal rows are excluded so reconciliation never resurrects a
	// finished record.
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications
		SET status = $2, updated_at = $3
		WHERE id = ANY($1::uuid[])
		  AND status NOT IN ('delivered', 'permanent-failure', 'temporary-failure', 'technical-failure')
	`, raw, status, at)
	if err != nil {
		return 0, fmt.Errorf("batch update notification status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("batch update rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ExistsForCheckinSince(ctx context.Context, checkinID id.CheckinID, eventType string, since time.Time) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE checkin_id = $1 AND event_type = $2 AND created_at >= $3
		)
	`, uuid.UUID(checkinID), eventType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check prior notification: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (models.Notification, error) {
	var (
		record        models.Notification
		rawID         uuid.UUID
		rawOffender   uuid.UUID
		rawCheckin    *uuid.UUID
		recipientType string
		channelKind   string
		recipient     string
	)
	err := row.Scan(
		&rawID,
		&record.EventType,
		&rawOffender,
		&rawCheckin,
		&recipientType,
		&channelKind,
		&recipient,
		&record.TemplateID,
		&record.Reference,
		&record.ProviderID,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Notification{}, sentinel.ErrNotFound
		}
		return models.Notification{}, fmt.Errorf("scan notification: %w", err)
	}
	record.ID = id.NotificationID(rawID)
	record.OffenderID = id.OffenderID(rawOffender)
	if rawCheckin != nil {
		record.CheckinID = id.CheckinID(*rawCheckin)
	}
	record.RecipientType = models.RecipientType(recipientType)
	record.Channel = models.ChannelOf(models.ChannelKind(channelKind), recipient)
	return record, nil
}
