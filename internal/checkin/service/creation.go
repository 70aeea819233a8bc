package service

import (
	"context"
	"errors"
	"log"
	"time"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/checkin/models"
	"esupervision/internal/checkin/store"
	"esupervision/internal/events"
	"esupervision/internal/notification"
	offendermodels "esupervision/internal/offender/models"
	offenderstore "esupervision/internal/offender/store"
	"esupervision/internal/platform/metrics"
	id "esupervision/pkg/domain"
	dErrors "esupervision/pkg/domain-errors"
	"esupervision/pkg/platform/sentinel"
)

// Creator is the single source of truth for instantiating a check-in for an
// (offender, due date) pair. Both the creation worker and the manual HTTP
// trigger go through it, so the VERIFIED guard and the uniqueness invariant
// live in exactly one place.
type Creator struct {
	checkins  store.Store
	offenders offenderstore.Store
	notifier  Notifier
	metrics   *metrics.Metrics
	log       *log.Logger
}

func NewCreator(checkins store.Store, offenders offenderstore.Store, notifier Notifier, m *metrics.Metrics, logger *log.Logger) *Creator {
	return &Creator{
		checkins:  checkins,
		offenders: offenders,
		notifier:  notifier,
		metrics:   m,
		log:       logger,
	}
}

// CreateForDate creates one check-in and fans out the created notification.
// Fails with invalid state unless the offender is VERIFIED, and with a
// validation failure when the date is already covered.
func (c *Creator) CreateForDate(ctx context.Context, offenderID id.OffenderID, dueDate time.Time) (models.Checkin, error) {
	offender, err := c.offenders.FindByID(ctx, offenderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Checkin{}, dErrors.Newf(dErrors.CodeNotFound, "offender %s not found", offenderID)
		}
		return models.Checkin{}, err
	}
	if offender.Status != offendermodels.StatusVerified {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeInvalidState, "check-ins require a VERIFIED offender, not %s", offender.Status)
	}

	day := offendermodels.DateOf(dueDate)
	covered, err := c.checkins.HasForDate(ctx, offender.ID, day)
	if err != nil {
		return models.Checkin{}, err
	}
	if covered {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeValidation, "a check-in already covers %s for offender %s", day.Format(time.DateOnly), offender.ID)
	}

	checkin := newCheckin(offender.ID, day)
	if err := c.checkins.Save(ctx, checkin); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race against a concurrent worker run; the invariant held.
			return models.Checkin{}, dErrors.Newf(dErrors.CodeValidation, "a check-in already covers %s for offender %s", day.Format(time.DateOnly), offender.ID)
		}
		return models.Checkin{}, err
	}
	c.metrics.CheckinsCreated.Inc()

	c.notifyCreated(ctx, offender, checkin, nil, "")
	return checkin, nil
}

// Candidate is one offender the creation worker resolved for a batch run.
// Details carry the batch-fetched contact details; nil means the directory
// could not resolve the reference.
type Candidate struct {
	Offender offendermodels.Offender
	Details  *casedirectory.ContactDetails
}

// CreateBatch inserts one check-in per candidate for the given date,
// skipping pairs already covered, then fans out created notifications per
// row. A notify failure for one offender never blocks the others.
func (c *Creator) CreateBatch(ctx context.Context, candidates []Candidate, dueDate time.Time, reference string) (int, error) {
	day := offendermodels.DateOf(dueDate)

	rows := make([]models.Checkin, 0, len(candidates))
	byOffender := make(map[id.OffenderID]Candidate, len(candidates))
	for _, candidate := range candidates {
		covered, err := c.checkins.HasForDate(ctx, candidate.Offender.ID, day)
		if err != nil {
			return 0, err
		}
		if covered {
			continue
		}
		rows = append(rows, newCheckin(candidate.Offender.ID, day))
		byOffender[candidate.Offender.ID] = candidate
	}
	if len(rows) == 0 {
		return 0, nil
	}

	inserted, err := c.checkins.SaveBatch(ctx, rows)
	if err != nil {
		return inserted, err
	}
	c.metrics.CheckinsCreated.Add(float64(inserted))

	for _, row := range rows {
		candidate := byOffender[row.OffenderID]
		c.notifyCreated(ctx, candidate.Offender, row, candidate.Details, reference)
	}
	return inserted, nil
}

func (c *Creator) notifyCreated(ctx context.Context, offender offendermodels.Offender, checkin models.Checkin, details *casedirectory.ContactDetails, reference string) {
	err := c.notifier.Notify(ctx, notification.Event{
		AuditType:      audit.EventCheckinCreated,
		StreamType:     events.TypeCheckinCreated,
		OffenderID:     offender.ID,
		CaseReference:  offender.CaseReference,
		PractitionerID: offender.PractitionerID,
		CheckinID:      checkin.ID,
		DueDate:        checkin.DueDate,
		NotifyOffender: true,
		Reference:      reference,
		Details:        details,
	})
	if err != nil {
		c.log.Printf("checkin: created fan-out for offender %s: %v", offender.ID, err)
	}
}

func newCheckin(offenderID id.OffenderID, day time.Time) models.Checkin {
	now := time.Now()
	return models.Checkin{
		ID:         id.NewCheckinID(),
		OffenderID: offenderID,
		DueDate:    day,
		Status:     models.StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
