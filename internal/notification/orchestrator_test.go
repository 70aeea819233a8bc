package notification

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/events"
	"esupervision/internal/notification/gateway"
	"esupervision/internal/notification/models"
	"esupervision/internal/notification/store"
	"esupervision/internal/platform/config"
	"esupervision/internal/platform/logger"
	"esupervision/internal/platform/metrics"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/tx"
)

type fixture struct {
	orchestrator *Orchestrator
	store        *store.MemoryStore
	gateway      *gateway.MockClient
	publisher    *events.MemoryPublisher
	auditStore   *audit.MemoryStore
	directory    *casedirectory.MockClient
}

func newFixture(cfg config.Notify) fixture {
	notifStore := store.NewMemoryStore()
	gw := gateway.NewMock()
	publisher := events.NewMemory()
	auditStore := audit.NewMemoryStore()
	directory := casedirectory.NewMock()
	orch := NewOrchestrator(
		notifStore, gw, publisher, audit.NewRecorder(auditStore), directory,
		tx.NopRunner{}, cfg, "http://localhost:8080",
		metrics.NewFor(prometheus.NewRegistry()), logger.Discard(),
	)
	return fixture{
		orchestrator: orch,
		store:        notifStore,
		gateway:      gw,
		publisher:    publisher,
		auditStore:   auditStore,
		directory:    directory,
	}
}

func allChannels() config.Notify {
	return config.Notify{
		OffenderSMSEnabled:   true,
		OffenderEmailEnabled: true,
		PractitionerEmail:    true,
	}
}

func sampleEvent() Event {
	return Event{
		AuditType:          audit.EventCheckinCreated,
		StreamType:         events.TypeCheckinCreated,
		OffenderID:         id.NewOffenderID(),
		CaseReference:      "X123456",
		PractitionerID:     "prac-1",
		CheckinID:          id.NewCheckinID(),
		NotifyOffender:     true,
		NotifyPractitioner: true,
	}
}

func fullDetails() *casedirectory.ContactDetails {
	return &casedirectory.ContactDetails{
		CaseReference:     "X123456",
		Name:              "Sam Carter",
		PhoneNumber:       "07700900123",
		Email:             "sam@example.com",
		PractitionerEmail: "officer@justice.example.com",
	}
}

func TestNotifySendsAllEnabledChannels(t *testing.T) {
	f := newFixture(allChannels())
	event := sampleEvent()
	event.Details = fullDetails()

	require.NoError(t, f.orchestrator.Notify(context.Background(), event))

	records := f.store.All()
	require.Len(t, records, 3)
	for _, record := range records {
		assert.Equal(t, models.StatusSent, record.Status)
		assert.NotEmpty(t, record.ProviderID)
	}
	assert.Len(t, f.gateway.Sent(), 3)
	require.Len(t, f.publisher.Published(), 1)
	assert.Equal(t, events.TypeCheckinCreated, f.publisher.Published()[0].Type)
}

func TestNotifyIsolatesSendFailures(t *testing.T) {
	f := newFixture(allChannels())
	f.gateway.FailOn[2] = true
	event := sampleEvent()
	event.Details = fullDetails()

	require.NoError(t, f.orchestrator.Notify(context.Background(), event))

	records := f.store.All()
	require.Len(t, records, 3)
	assert.Equal(t, models.StatusSent, records[0].Status)
	assert.Equal(t, models.StatusFailed, records[1].Status)
	assert.Equal(t, models.StatusSent, records[2].Status)
	for _, record := range records {
		assert.NotEqual(t, models.StatusPending, record.Status)
	}
}

func TestNotifyPublishesEvenWhenLookupFails(t *testing.T) {
	f := newFixture(allChannels())
	// No directory data and nothing pre-fetched: every channel is
	// undeliverable, but the event stream still gets its message.
	require.NoError(t, f.orchestrator.Notify(context.Background(), sampleEvent()))

	assert.Len(t, f.publisher.Published(), 1)
	assert.Empty(t, f.store.All())

	var undeliverable int
	for _, fact := range f.auditStore.All() {
		if fact.Type == audit.EventUndeliverable {
			undeliverable++
		}
	}
	assert.Equal(t, 3, undeliverable)
}

func TestNotifyMarksMissingRecipientUndeliverable(t *testing.T) {
	f := newFixture(allChannels())
	event := sampleEvent()
	details := fullDetails()
	details.PhoneNumber = ""
	event.Details = details

	require.NoError(t, f.orchestrator.Notify(context.Background(), event))

	records := f.store.All()
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, models.KindEmail, record.Channel.Kind())
	}

	var undeliverable []audit.Event
	for _, fact := range f.auditStore.All() {
		if fact.Type == audit.EventUndeliverable {
			undeliverable = append(undeliverable, fact)
		}
	}
	require.Len(t, undeliverable, 1)
	assert.Contains(t, undeliverable[0].Comment, "no phone number")
}

func TestNotifyPractitionerOnlyAudience(t *testing.T) {
	f := newFixture(allChannels())
	event := sampleEvent()
	event.AuditType = audit.EventCheckinExpired
	event.StreamType = events.TypeCheckinExpired
	event.NotifyOffender = false
	event.Details = fullDetails()

	require.NoError(t, f.orchestrator.Notify(context.Background(), event))

	records := f.store.All()
	require.Len(t, records, 1)
	assert.Equal(t, models.RecipientPractitioner, records[0].RecipientType)
	assert.Equal(t, "officer@justice.example.com", records[0].Channel.Recipient())
}
