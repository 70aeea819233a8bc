package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"esupervision/internal/audit"
	checkinstore "esupervision/internal/checkin/store"
	"esupervision/internal/events"
	"esupervision/internal/notification"
	notifstore "esupervision/internal/notification/store"
	offendermodels "esupervision/internal/offender/models"
	offenderstore "esupervision/internal/offender/store"
	"esupervision/internal/platform/metrics"
	"esupervision/pkg/platform/sentinel"
	"esupervision/pkg/requestcontext"
)

// ReminderName is the reminder worker's lock and log identity.
const ReminderName = "checkin-reminder"

// ReminderWorker nudges offenders whose check-in is sitting unanswered at a
// fixed point inside the grace window. Duplicate reminders from schedules
// that fire more than once a day are suppressed by querying prior
// notification records, not by trusting the schedule.
type ReminderWorker struct {
	checkins      checkinstore.Store
	offenders     offenderstore.Store
	notifications notifstore.Store
	notifier      Notifier
	metrics       *metrics.Metrics
	reminderDay   int
	log           *log.Logger
}

func NewReminderWorker(
	checkins checkinstore.Store,
	offenders offenderstore.Store,
	notifications notifstore.Store,
	notifier Notifier,
	m *metrics.Metrics,
	reminderDay int,
	logger *log.Logger,
) *ReminderWorker {
	return &ReminderWorker{
		checkins:      checkins,
		offenders:     offenders,
		notifications: notifications,
		notifier:      notifier,
		metrics:       m,
		reminderDay:   reminderDay,
		log:           logger,
	}
}

func (w *ReminderWorker) Run(ctx context.Context) error {
	today := offendermodels.DateOf(requestcontext.Now(ctx))
	// A check-in due reminderDay days ago and still CREATED gets a nudge.
	dueDate := today.AddDate(0, 0, -w.reminderDay)

	unanswered, err := w.checkins.ListCreatedByDueDate(ctx, dueDate)
	if err != nil {
		return fmt.Errorf("list unanswered check-ins: %w", err)
	}

	reference := fmt.Sprintf("%s-%s", ReminderName, today.Format("2006-01-02"))
	reminded := 0
	for _, checkin := range unanswered {
		already, err := w.notifications.ExistsForCheckinSince(ctx, checkin.ID,
			string(audit.EventCheckinReminded), checkin.DueDate)
		if err != nil {
			w.metrics.JobItemError.WithLabelValues(ReminderName).Inc()
			w.log.Printf("job %s: reminder lookup for check-in %s: %v", ReminderName, checkin.ID, err)
			continue
		}
		if already {
			continue
		}

		offender, err := w.offenders.FindByID(ctx, checkin.OffenderID)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				w.metrics.JobItemError.WithLabelValues(ReminderName).Inc()
				w.log.Printf("job %s: load offender %s: %v", ReminderName, checkin.OffenderID, err)
			}
			continue
		}

		err = w.notifier.Notify(ctx, notification.Event{
			AuditType:      audit.EventCheckinReminded,
			StreamType:     events.TypeCheckinReminded,
			OffenderID:     offender.ID,
			CaseReference:  offender.CaseReference,
			PractitionerID: offender.PractitionerID,
			CheckinID:      checkin.ID,
			DueDate:        checkin.DueDate,
			NotifyOffender: true,
			Reference:      reference,
		})
		if err != nil {
			w.metrics.JobItemError.WithLabelValues(ReminderName).Inc()
			w.log.Printf("job %s: notify for check-in %s: %v", ReminderName, checkin.ID, err)
			continue
		}
		w.metrics.RemindersSent.Inc()
		reminded++
	}

	if reminded > 0 {
		w.log.Printf("job %s: reminded %d check-ins due %s", ReminderName, reminded, dueDate.Format("2006-01-02"))
	}
	return nil
}
