package store

import (
	"context"
	"time"

	"esupervision/internal/notification/models"
	id "esupervision/pkg/domain"
)

// Store persists notification records.
type Store interface {
	Save(ctx context.Context, notification models.Notification) error
	// SaveBatch persists a set of pending records; callers wrap it in one
	// transaction so an orchestration is either fully recorded or not at all.
	SaveBatch(ctx context.Context, notifications []models.Notification) error
	// UpdateOutcome records the result of a delivery call on one record.
	UpdateOutcome(ctx context.Context, notificationID id.NotificationID, status, providerID string, at time.Time) error
	// ListUnresolvedSince returns non-terminal records created after the
	// cutoff that have a provider id to look up. Empty eventTypes means all.
	ListUnresolvedSince(ctx context.Context, eventTypes []string, since time.Time) ([]models.Notification, error)
	// UpdateStatusBatch sets one status on many records, skipping any already
	// terminal. Returns the number changed.
	UpdateStatusBatch(ctx context.Context, ids []id.NotificationID, status string, at time.Time) (int, error)
	// ExistsForCheckinSince reports whether a record of the given event type
	// already exists for the check-in after the cutoff (reminder dedupe).
	ExistsForCheckinSince(ctx context.Context, checkinID id.CheckinID, eventType string, since time.Time) (bool, error)
}
