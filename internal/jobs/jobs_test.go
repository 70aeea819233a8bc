package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	checkinmodels "esupervision/internal/checkin/models"
	checkinservice "esupervision/internal/checkin/service"
	checkinstore "esupervision/internal/checkin/store"
	"esupervision/internal/events"
	"esupervision/internal/notification"
	"esupervision/internal/notification/gateway"
	"esupervision/internal/notification/models"
	notifstore "esupervision/internal/notification/store"
	offendermodels "esupervision/internal/offender/models"
	offenderstore "esupervision/internal/offender/store"
	"esupervision/internal/platform/config"
	"esupervision/internal/platform/logger"
	"esupervision/internal/platform/metrics"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/tx"
	"esupervision/pkg/requestcontext"
)

type fixture struct {
	checkins      *checkinstore.MemoryStore
	offenders     *offenderstore.MemoryStore
	notifications *notifstore.MemoryStore
	directory     *casedirectory.MockClient
	gateway       *gateway.MockClient
	publisher     *events.MemoryPublisher
	auditStore    *audit.MemoryStore
	orchestrator  *notification.Orchestrator
	creator       *checkinservice.Creator
	metrics       *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		checkins:      checkinstore.NewMemory(),
		offenders:     offenderstore.NewMemory(),
		notifications: notifstore.NewMemoryStore(),
		directory:     casedirectory.NewMock(),
		gateway:       gateway.NewMock(),
		publisher:     events.NewMemory(),
		auditStore:    audit.NewMemoryStore(),
		metrics:       metrics.NewFor(prometheus.NewRegistry()),
	}
	cfg := config.Notify{OffenderSMSEnabled: true, OffenderEmailEnabled: true, PractitionerEmail: true}
	f.orchestrator = notification.NewOrchestrator(
		f.notifications, f.gateway, f.publisher, audit.NewRecorder(f.auditStore),
		f.directory, tx.NopRunner{}, cfg, "http://localhost:8080", f.metrics, logger.Discard())
	f.creator = checkinservice.NewCreator(f.checkins, f.offenders, f.orchestrator, f.metrics, logger.Discard())
	return f
}

func (f *fixture) addOffender(t *testing.T, ref id.CaseReference, first time.Time, interval int) offendermodels.Offender {
	t.Helper()
	offender := offendermodels.Offender{
		ID:             id.NewOffenderID(),
		CaseReference:  ref,
		PractitionerID: "prac-1",
		Status:         offendermodels.StatusVerified,
		FirstCheckin:   first,
		IntervalDays:   interval,
	}
	require.NoError(t, f.offenders.Save(context.Background(), offender))
	f.directory.Add(casedirectory.ContactDetails{
		CaseReference:     ref,
		Name:              "Sam Carter",
		PhoneNumber:       "07700900123",
		Email:             "sam@example.com",
		PractitionerEmail: "officer@justice.example.com",
	})
	return offender
}

func dayCtx(day time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), day)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreationWorkerEndToEnd(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, "X123456", date(2025, 6, 1), 7)
	worker := NewCreationWorker(f.offenders, f.directory, f.creator, f.metrics, logger.Discard())

	// 2025-06-08 is exactly one interval after the first check-in.
	require.NoError(t, worker.Run(dayCtx(date(2025, 6, 8))))

	created, err := f.checkins.ListCreatedByDueDate(context.Background(), date(2025, 6, 8))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, offender.ID, created[0].OffenderID)
	assert.Equal(t, checkinmodels.StatusCreated, created[0].Status)

	// Off-schedule days create nothing.
	require.NoError(t, worker.Run(dayCtx(date(2025, 6, 9))))
	all, err := f.checkins.ListCreatedByDueDate(context.Background(), date(2025, 6, 9))
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreationWorkerIdempotentRerun(t *testing.T) {
	f := newFixture(t)
	f.addOffender(t, "X123456", date(2025, 6, 1), 7)
	worker := NewCreationWorker(f.offenders, f.directory, f.creator, f.metrics, logger.Discard())

	require.NoError(t, worker.Run(dayCtx(date(2025, 6, 8))))
	firstRunEvents := len(f.publisher.Published())
	require.NoError(t, worker.Run(dayCtx(date(2025, 6, 8))))

	created, err := f.checkins.ListCreatedByDueDate(context.Background(), date(2025, 6, 8))
	require.NoError(t, err)
	assert.Len(t, created, 1)
	// No second fan-out for the already-covered pair either.
	assert.Len(t, f.publisher.Published(), firstRunEvents)
}

func TestCreationWorkerSkipsUnresolvableOffender(t *testing.T) {
	f := newFixture(t)
	f.addOffender(t, "X123456", date(2025, 6, 1), 7)
	ghost := offendermodels.Offender{
		ID:             id.NewOffenderID(),
		CaseReference:  "Z999999", // not in the directory
		PractitionerID: "prac-2",
		Status:         offendermodels.StatusVerified,
		FirstCheckin:   date(2025, 6, 1),
		IntervalDays:   7,
	}
	require.NoError(t, f.offenders.Save(context.Background(), ghost))
	worker := NewCreationWorker(f.offenders, f.directory, f.creator, f.metrics, logger.Discard())

	require.NoError(t, worker.Run(dayCtx(date(2025, 6, 8))))

	created, err := f.checkins.ListCreatedByDueDate(context.Background(), date(2025, 6, 8))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.NotEqual(t, ghost.ID, created[0].OffenderID)
}

func TestExpiryWorker(t *testing.T) {
	f := newFixture(t)
	f.addOffender(t, "X123456", date(2025, 6, 1), 7)
	worker := NewCreationWorker(f.offenders, f.directory, f.creator, f.metrics, logger.Discard())
	require.NoError(t, worker.Run(dayCtx(date(2025, 6, 8))))

	expiry := NewExpiryWorker(f.checkins, f.offenders, f.directory, f.orchestrator,
		tx.NopRunner{}, f.metrics, 3, logger.Discard())

	// Inside the grace window: nothing expires.
	require.NoError(t, expiry.Run(dayCtx(date(2025, 6, 10))))
	stillCreated, err := f.checkins.ListCreatedByDueDate(context.Background(), date(2025, 6, 8))
	require.NoError(t, err)
	require.Len(t, stillCreated, 1)

	// Past the window: expired, practitioner notified, offender not.
	sendsBefore := len(f.gateway.Sent())
	require.NoError(t, expiry.Run(dayCtx(date(2025, 6, 12))))
	gone, err := f.checkins.ListCreatedByDueDate(context.Background(), date(2025, 6, 8))
	require.NoError(t, err)
	assert.Empty(t, gone)

	sends := f.gateway.Sent()[sendsBefore:]
	require.Len(t, sends, 1)
	assert.Equal(t, models.KindEmail, sends[0].Channel.Kind())
	assert.Equal(t, "officer@justice.example.com", sends[0].Channel.Recipient())

	// Re-running touches nothing further.
	require.NoError(t, expiry.Run(dayCtx(date(2025, 6, 12))))
	assert.Len(t, f.gateway.Sent(), sendsBefore+1)
}

func TestReminderWorkerDedupes(t *testing.T) {
	f := newFixture(t)
	f.addOffender(t, "X123456", date(2025, 6, 1), 7)
	creation := NewCreationWorker(f.offenders, f.directory, f.creator, f.metrics, logger.Discard())
	require.NoError(t, creation.Run(dayCtx(date(2025, 6, 8))))

	reminder := NewReminderWorker(f.checkins, f.offenders, f.notifications, f.orchestrator,
		f.metrics, 1, logger.Discard())

	sendsBefore := len(f.gateway.Sent())
	require.NoError(t, reminder.Run(dayCtx(date(2025, 6, 9))))
	// Offender SMS + offender email for the reminder.
	assert.Len(t, f.gateway.Sent(), sendsBefore+2)

	// Same day, second schedule fire: prior records suppress the reminder.
	require.NoError(t, reminder.Run(dayCtx(date(2025, 6, 9))))
	assert.Len(t, f.gateway.Sent(), sendsBefore+2)
}

func TestReminderWorkerIgnoresSubmitted(t *testing.T) {
	f := newFixture(t)
	f.addOffender(t, "X123456", date(2025, 6, 1), 7)
	creation := NewCreationWorker(f.offenders, f.directory, f.creator, f.metrics, logger.Discard())
	require.NoError(t, creation.Run(dayCtx(date(2025, 6, 8))))

	created, err := f.checkins.ListCreatedByDueDate(context.Background(), date(2025, 6, 8))
	require.NoError(t, err)
	require.Len(t, created, 1)
	checkin := created[0]
	require.NoError(t, checkin.Transition(checkinmodels.StatusSubmitted, time.Now()))
	require.NoError(t, f.checkins.Update(context.Background(), checkin))

	reminder := NewReminderWorker(f.checkins, f.offenders, f.notifications, f.orchestrator,
		f.metrics, 1, logger.Discard())
	sendsBefore := len(f.gateway.Sent())
	require.NoError(t, reminder.Run(dayCtx(date(2025, 6, 9))))
	assert.Len(t, f.gateway.Sent(), sendsBefore)
}

func TestReconcileWorkerAppliesStatusesAndStops(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	sent := models.Notification{
		ID:         id.NewNotificationID(),
		EventType:  string(audit.EventCheckinCreated),
		OffenderID: id.NewOffenderID(),
		Channel:    models.SMS{Phone: "07700900123"},
		Reference:  "creation-2025-06-08",
		ProviderID: "provider-1",
		Status:     models.StatusSent,
		CreatedAt:  now,
	}
	delivered := sent
	delivered.ID = id.NewNotificationID()
	delivered.ProviderID = "provider-2"
	delivered.Status = "delivered"
	require.NoError(t, f.notifications.Save(context.Background(), sent))
	require.NoError(t, f.notifications.Save(context.Background(), delivered))

	f.gateway.StatusPages = []gateway.StatusPage{{
		Items: []gateway.DeliveryStatus{
			{ProviderID: "provider-1", Reference: sent.Reference, Status: "delivered"},
			{ProviderID: "provider-2", Reference: sent.Reference, Status: "delivered"},
		},
	}}

	worker := NewReconcileWorker("notification-reconcile", f.notifications, f.gateway,
		f.metrics, 72*time.Hour, nil, logger.Discard())
	require.NoError(t, worker.Run(dayCtx(now)))

	records := f.notifications.All()
	for _, record := range records {
		assert.Equal(t, "delivered", record.Status)
	}
	assert.Equal(t, 1, f.gateway.StatusCalls())

	// Everything terminal now: the next run queries no pages at all.
	require.NoError(t, worker.Run(dayCtx(now)))
	assert.Equal(t, 1, f.gateway.StatusCalls())
}

func TestReconcileWorkerFollowsPaging(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	record := models.Notification{
		ID:         id.NewNotificationID(),
		EventType:  string(audit.EventCheckinCreated),
		OffenderID: id.NewOffenderID(),
		Channel:    models.SMS{Phone: "07700900123"},
		Reference:  "creation-2025-06-08",
		ProviderID: "provider-9",
		Status:     models.StatusSent,
		CreatedAt:  now,
	}
	require.NoError(t, f.notifications.Save(context.Background(), record))

	f.gateway.StatusPages = []gateway.StatusPage{
		{Items: []gateway.DeliveryStatus{{ProviderID: "other", Status: "delivered"}}, HasNextPage: true, NextCursor: "cursor-1"},
		{Items: []gateway.DeliveryStatus{{ProviderID: "provider-9", Status: "temporary-failure"}}},
	}

	worker := NewReconcileWorker("notification-reconcile", f.notifications, f.gateway,
		f.metrics, 72*time.Hour, nil, logger.Discard())
	require.NoError(t, worker.Run(dayCtx(now)))

	assert.Equal(t, 2, f.gateway.StatusCalls())
	assert.Equal(t, "temporary-failure", f.notifications.All()[0].Status)
}

func TestReconcileWorkerScopedByEventType(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	reminder := models.Notification{
		ID:         id.NewNotificationID(),
		EventType:  string(audit.EventCheckinReminded),
		OffenderID: id.NewOffenderID(),
		Channel:    models.SMS{Phone: "07700900123"},
		Reference:  "reminder-2025-06-09",
		ProviderID: "provider-1",
		Status:     models.StatusSent,
		CreatedAt:  now,
	}
	require.NoError(t, f.notifications.Save(context.Background(), reminder))

	worker := NewReconcileWorker("creation-reconcile", f.notifications, f.gateway,
		f.metrics, 72*time.Hour, []string{string(audit.EventCheckinCreated)}, logger.Discard())
	require.NoError(t, worker.Run(dayCtx(now)))

	// Out-of-scope record: no provider traffic at all.
	assert.Zero(t, f.gateway.StatusCalls())
}
