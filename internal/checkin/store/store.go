package store

import (
	"context"
	"time"

	"esupervision/internal/checkin/models"
	id "esupervision/pkg/domain"
)

// Store persists check-ins. The (offender, due date) uniqueness invariant is
// enforced here: Save returns sentinel.ErrConflict on a duplicate and
// SaveBatch silently skips duplicates, so re-running the creation worker for
// a date that already produced check-ins produces no extra rows.
type Store interface {
	Save(ctx context.Context, checkin models.Checkin) error
	// SaveBatch inserts the given check-ins, skipping any that collide with
	// an existing (offender, due date) pair. Returns the number inserted.
	SaveBatch(ctx context.Context, checkins []models.Checkin) (int, error)
	Update(ctx context.Context, checkin models.Checkin) error
	FindByID(ctx context.Context, checkinID id.CheckinID) (models.Checkin, error)
	// HasForDate reports whether a CREATED/SUBMITTED/REVIEWED check-in
	// already covers the (offender, due date) pair.
	HasForDate(ctx context.Context, offenderID id.OffenderID, dueDate time.Time) (bool, error)
	// ListCreatedDueBefore returns CREATED check-ins with due date strictly
	// before the cutoff (expiry worker's candidate set).
	ListCreatedDueBefore(ctx context.Context, cutoff time.Time) ([]models.Checkin, error)
	// ListCreatedByDueDate returns CREATED check-ins due exactly on the
	// given date (reminder worker's candidate set).
	ListCreatedByDueDate(ctx context.Context, dueDate time.Time) ([]models.Checkin, error)
	// ExpireBatch moves the given check-ins to EXPIRED in one statement,
	// touching only rows still in CREATED. Returns the number transitioned.
	ExpireBatch(ctx context.Context, ids []id.CheckinID, at time.Time) (int, error)
}
