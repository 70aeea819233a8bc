// Package notification turns domain occurrences into persisted, delivered
// notifications. The ordering inside Notify is deliberate: the domain event
// is published before anything that can fail, because the event stream is
// the system of record for external consumers; delivery problems afterwards
// only ever degrade to audit entries and failed records.
package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/events"
	"esupervision/internal/notification/gateway"
	"esupervision/internal/notification/models"
	"esupervision/internal/notification/store"
	"esupervision/internal/platform/config"
	"esupervision/internal/platform/metrics"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/tx"
)

// Event is one domain occurrence to fan out. Details may be pre-fetched by
// batch workers; when nil the orchestrator fetches them itself.
type Event struct {
	AuditType  audit.EventType
	StreamType string

	OffenderID     id.OffenderID
	CaseReference  id.CaseReference
	PractitionerID id.PractitionerID
	CheckinID      id.CheckinID
	DueDate        time.Time

	// Timing deltas for the audit fact; zero when not applicable.
	TimeToSubmit time.Duration
	TimeToReview time.Duration

	// Comment carries the practitioner note onto the audit fact for
	// review-class events.
	Comment string

	// Audience selects recipients; channel fan-out within each recipient
	// follows the channel-enablement config.
	NotifyOffender     bool
	NotifyPractitioner bool

	// Reference overrides the provider-lookup reference; workers set one
	// per run so reconciliation can scope to the batch. Defaults to
	// streamType-offenderID.
	Reference string

	Details *casedirectory.ContactDetails
}

// Orchestrator fans a domain event out to the event stream, the audit log,
// and zero or more notification deliveries.
type Orchestrator struct {
	store     store.Store
	gateway   gateway.Client
	publisher events.Publisher
	audit     *audit.Recorder
	directory casedirectory.Client
	runner    tx.Runner
	cfg       config.Notify
	detailURL string
	metrics   *metrics.Metrics
	log       *log.Logger
}

func NewOrchestrator(
	notifStore store.Store,
	gw gateway.Client,
	publisher events.Publisher,
	recorder *audit.Recorder,
	directory casedirectory.Client,
	runner tx.Runner,
	cfg config.Notify,
	detailURLBase string,
	m *metrics.Metrics,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     notifStore,
		gateway:   gw,
		publisher: publisher,
		audit:     recorder,
		directory: directory,
		runner:    runner,
		cfg:       cfg,
		detailURL: detailURLBase,
		metrics:   m,
		log:       logger,
	}
}

// Notify runs the full fan-out for one event. It returns an error only when
// the pending records cannot be persisted; everything downstream of that is
// isolated per record and reported through logs, audit, and metrics.
func (o *Orchestrator) Notify(ctx context.Context, event Event) error {
	now := time.Now()

	o.publisher.Publish(events.Event{
		Type:       event.StreamType,
		DetailURL:  fmt.Sprintf("%s/offenders/%s", o.detailURL, event.OffenderID),
		OccurredAt: now,
		PersonReference: events.PersonReference{
			Type:  "CRN",
			Value: event.CaseReference.String(),
		},
	})

	details, haveDetails := o.resolveDetails(ctx, event)

	if err := o.audit.Record(ctx, audit.Event{
		Type:           event.AuditType,
		OffenderID:     event.OffenderID,
		CheckinID:      event.CheckinID,
		PractitionerID: event.PractitionerID,
		Comment:        event.Comment,
		TimeToSubmit:   event.TimeToSubmit,
		TimeToReview:   event.TimeToReview,
		OccurredAt:     now,
	}); err != nil {
		o.log.Printf("notification: audit %s for offender %s: %v", event.AuditType, event.OffenderID, err)
	}

	tasks := o.buildTasks(ctx, event, details, haveDetails, now)
	if len(tasks) == 0 {
		return nil
	}

	records := make([]models.Notification, len(tasks))
	for i, task := range tasks {
		records[i] = task.record
	}
	err := o.runner.InTx(ctx, func(ctx context.Context) error {
		return o.store.SaveBatch(ctx, records)
	})
	if err != nil {
		return fmt.Errorf("persist pending notifications: %w", err)
	}

	// Sequential sends, each outcome committed on its own so a failure in
	// the middle of the batch cannot touch neighbours.
	for _, t := range tasks {
		o.send(ctx, t)
	}
	return nil
}

func (o *Orchestrator) resolveDetails(ctx context.Context, event Event) (casedirectory.ContactDetails, bool) {
	if event.Details != nil {
		return *event.Details, true
	}
	details, err := o.directory.Get(ctx, event.CaseReference)
	if err != nil {
		o.log.Printf("notification: contact lookup for %s: %v", event.CaseReference, err)
		return casedirectory.ContactDetails{}, false
	}
	return details, true
}

// task pairs a pending record with the provider personalisation, which is
// needed at send time but never persisted.
type task struct {
	record          models.Notification
	personalisation map[string]string
}

// buildTasks materialises one pending record per enabled channel that has a
// usable recipient. An enabled channel with no recipient data is an
// undeliverable condition: logged and audited, never an error.
func (o *Orchestrator) buildTasks(ctx context.Context, event Event, details casedirectory.ContactDetails, haveDetails bool, now time.Time) []task {
	reference := event.Reference
	if reference == "" {
		reference = fmt.Sprintf("%s-%s", event.StreamType, event.OffenderID)
	}

	type candidate struct {
		enabled   bool
		recipient models.RecipientType
		channel   models.Channel
		missing   string
	}
	candidates := []candidate{
		{
			enabled:   event.NotifyOffender && o.cfg.OffenderSMSEnabled,
			recipient: models.RecipientOffender,
			channel:   models.SMS{Phone: details.PhoneNumber},
			missing:   "no phone number on record",
		},
		{
			enabled:   event.NotifyOffender && o.cfg.OffenderEmailEnabled,
			recipient: models.RecipientOffender,
			channel:   models.Email{Address: details.Email},
			missing:   "no email address on record",
		},
		{
			enabled:   event.NotifyPractitioner && o.cfg.PractitionerEmail,
			recipient: models.RecipientPractitioner,
			channel:   models.Email{Address: details.PractitionerEmail},
			missing:   "no practitioner email on record",
		},
	}

	personalisation := buildPersonalisation(event, details)
	var tasks []task
	for _, c := range candidates {
		if !c.enabled {
			continue
		}
		if !haveDetails || c.channel.Recipient() == "" {
			reason := c.missing
			if !haveDetails {
				reason = "contact details unavailable"
			}
			o.markUndeliverable(ctx, event, c.recipient, c.channel.Kind(), reason, now)
			continue
		}
		tasks = append(tasks, task{
			record: models.Notification{
				ID:            id.NewNotificationID(),
				EventType:     string(event.AuditType),
				OffenderID:    event.OffenderID,
				CheckinID:     event.CheckinID,
				RecipientType: c.recipient,
				Channel:       c.channel,
				TemplateID:    templateFor(event.AuditType, c.channel.Kind()),
				Reference:     reference,
				Status:        models.StatusPending,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
			personalisation: personalisation,
		})
	}
	return tasks
}

func (o *Orchestrator) markUndeliverable(ctx context.Context, event Event, recipient models.RecipientType, kind models.ChannelKind, reason string, now time.Time) {
	o.log.Printf("notification: %s undeliverable for offender %s (%s %s): %s",
		event.AuditType, event.OffenderID, recipient, kind, reason)
	err := o.audit.Record(ctx, audit.Event{
		Type:           audit.EventUndeliverable,
		OffenderID:     event.OffenderID,
		CheckinID:      event.CheckinID,
		PractitionerID: event.PractitionerID,
		Comment:        fmt.Sprintf("%s %s: %s", recipient, kind, reason),
		OccurredAt:     now,
	})
	if err != nil {
		o.log.Printf("notification: audit undeliverable for offender %s: %v", event.OffenderID, err)
	}
}

func (o *Orchestrator) send(ctx context.Context, t task) {
	record := t.record
	providerID, err := o.gateway.Send(ctx, gateway.SendRequest{
		Channel:         record.Channel,
		TemplateID:      record.TemplateID,
		Personalisation: t.personalisation,
		Reference:       record.Reference,
	})

	status := models.StatusSent
	channel := string(record.Channel.Kind())
	if err != nil {
		status = models.StatusFailed
		o.metrics.NotificationsFailed.WithLabelValues(channel).Inc()
		o.log.Printf("notification: send %s to %s for offender %s: %v",
			record.EventType, channel, record.OffenderID, err)
	} else {
		o.metrics.NotificationsSent.WithLabelValues(channel).Inc()
	}

	updateErr := o.runner.InTx(ctx, func(ctx context.Context) error {
		return o.store.UpdateOutcome(ctx, record.ID, status, providerID, time.Now())
	})
	if updateErr != nil {
		o.log.Printf("notification: record outcome %s for %s: %v", status, record.ID, updateErr)
	}
}
