package store

import (
	"context"
	"time"

	"esupervision/internal/offender/models"
	id "esupervision/pkg/domain"
)

// Store persists offenders. Implementations return sentinel errors for
// factual failures (sentinel.ErrNotFound, sentinel.ErrConflict).
type Store interface {
	Save(ctx context.Context, offender models.Offender) error
	Update(ctx context.Context, offender models.Offender) error
	FindByID(ctx context.Context, offenderID id.OffenderID) (models.Offender, error)
	FindByCaseReference(ctx context.Context, ref id.CaseReference) (models.Offender, error)
	// ListDueOn returns VERIFIED offenders whose schedule falls due on the
	// given date. The set-based filter is the first phase of the creation
	// worker; uniqueness against existing check-ins is enforced separately.
	ListDueOn(ctx context.Context, day time.Time) ([]models.Offender, error)
}
