package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	checkinmodels "esupervision/internal/checkin/models"
	checkinstore "esupervision/internal/checkin/store"
	"esupervision/internal/events"
	"esupervision/internal/notification"
	offendermodels "esupervision/internal/offender/models"
	offenderstore "esupervision/internal/offender/store"
	"esupervision/internal/platform/metrics"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
	"esupervision/pkg/platform/tx"
	"esupervision/pkg/requestcontext"
)

// ExpiryName is the expiry worker's lock and log identity.
const ExpiryName = "checkin-expiry"

// Notifier is the slice of the notification orchestrator the workers need.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event) error
}

// ExpiryWorker moves CREATED check-ins past the grace window to EXPIRED in
// one transaction, then notifies practitioners (never offenders) in a
// separate non-transactional phase. Eligibility is derived purely from row
// state, so the worker is safe to re-run and does not care whether creation
// ran first.
type ExpiryWorker struct {
	checkins  checkinstore.Store
	offenders offenderstore.Store
	directory casedirectory.Client
	notifier  Notifier
	runner    tx.Runner
	metrics   *metrics.Metrics
	graceDays int
	log       *log.Logger
}

func NewExpiryWorker(
	checkins checkinstore.Store,
	offenders offenderstore.Store,
	directory casedirectory.Client,
	notifier Notifier,
	runner tx.Runner,
	m *metrics.Metrics,
	graceDays int,
	logger *log.Logger,
) *ExpiryWorker {
	return &ExpiryWorker{
		checkins:  checkins,
		offenders: offenders,
		directory: directory,
		notifier:  notifier,
		runner:    runner,
		metrics:   m,
		graceDays: graceDays,
		log:       logger,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	now := requestcontext.Now(ctx)
	today := offendermodels.DateOf(now)
	cutoff := today.AddDate(0, 0, -w.graceDays)

	overdue, err := w.checkins.ListCreatedDueBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list overdue check-ins: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	ids := make([]id.CheckinID, len(overdue))
	for i, checkin := range overdue {
		ids[i] = checkin.ID
	}

	var expired int
	err = w.runner.InTx(ctx, func(ctx context.Context) error {
		var txErr error
		expired, txErr = w.checkins.ExpireBatch(ctx, ids, now)
		return txErr
	})
	if err != nil {
		return fmt.Errorf("expire batch: %w", err)
	}
	w.metrics.CheckinsExpired.Add(float64(expired))
	w.log.Printf("job %s: expired %d check-ins due before %s", ExpiryName, expired, cutoff.Format("2006-01-02"))

	// Notification phase, deliberately outside the write transaction: a
	// notify failure must not undo the expiry, and each item is isolated.
	w.notifyExpired(ctx, overdue)
	return nil
}

func (w *ExpiryWorker) notifyExpired(ctx context.Context, expired []checkinmodels.Checkin) {
	offenders, details := w.resolve(ctx, expired)
	reference := fmt.Sprintf("%s-%s", ExpiryName, offendermodels.DateOf(requestcontext.Now(ctx)).Format("2006-01-02"))

	for _, checkin := range expired {
		offender, ok := offenders[checkin.OffenderID]
		if !ok {
			w.metrics.JobItemError.WithLabelValues(ExpiryName).Inc()
			continue
		}
		event := notification.Event{
			AuditType:          audit.EventCheckinExpired,
			StreamType:         events.TypeCheckinExpired,
			OffenderID:         offender.ID,
			CaseReference:      offender.CaseReference,
			PractitionerID:     offender.PractitionerID,
			CheckinID:          checkin.ID,
			DueDate:            checkin.DueDate,
			NotifyPractitioner: true,
			Reference:          reference,
		}
		if contact, ok := details[offender.CaseReference]; ok {
			event.Details = &contact
		}
		if err := w.notifier.Notify(ctx, event); err != nil {
			w.metrics.JobItemError.WithLabelValues(ExpiryName).Inc()
			w.log.Printf("job %s: notify for check-in %s: %v", ExpiryName, checkin.ID, err)
		}
	}
}

// resolve loads the owning offenders and batch-fetches their contact
// details. Both lookups degrade per item rather than failing the phase.
func (w *ExpiryWorker) resolve(ctx context.Context, expired []checkinmodels.Checkin) (map[id.OffenderID]offendermodels.Offender, map[id.CaseReference]casedirectory.ContactDetails) {
	offenders := make(map[id.OffenderID]offendermodels.Offender)
	var refs []id.CaseReference
	for _, checkin := range expired {
		if _, seen := offenders[checkin.OffenderID]; seen {
			continue
		}
		offender, err := w.offenders.FindByID(ctx, checkin.OffenderID)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				w.log.Printf("job %s: load offender %s: %v", ExpiryName, checkin.OffenderID, err)
			}
			continue
		}
		offenders[checkin.OffenderID] = offender
		refs = append(refs, offender.CaseReference)
	}

	details := make(map[id.CaseReference]casedirectory.ContactDetails, len(refs))
	for _, chunk := range casedirectory.Chunk(refs) {
		resolved, err := w.directory.GetBatch(ctx, chunk)
		if err != nil {
			w.log.Printf("job %s: contact chunk of %d failed: %v", ExpiryName, len(chunk), err)
			continue
		}
		for ref, contact := range resolved {
			details[ref] = contact
		}
	}
	return offenders, details
}
