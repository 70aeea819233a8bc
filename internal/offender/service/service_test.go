package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/notification"
	"esupervision/internal/objectstore"
	"esupervision/internal/offender/models"
	"esupervision/internal/offender/store"
	"esupervision/internal/platform/logger"
	id "esupervision/pkg/domain"
	dErrors "esupervision/pkg/domain-errors"
)

type recordingNotifier struct {
	events []notification.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event notification.Event) error {
	n.events = append(n.events, event)
	return nil
}

type fixture struct {
	service   *Service
	store     *store.MemoryStore
	directory *casedirectory.MockClient
	storage   *objectstore.MemoryGateway
	notifier  *recordingNotifier
	audit     *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemory(),
		directory: casedirectory.NewMock(),
		storage:   objectstore.NewMemory(),
		notifier:  &recordingNotifier{},
		audit:     audit.NewMemoryStore(),
	}
	f.service = New(f.store, f.directory, f.storage, f.notifier,
		audit.NewRecorder(f.audit), 15*time.Minute, logger.Discard())
	return f
}

func (f *fixture) register(t *testing.T) models.Offender {
	t.Helper()
	f.directory.Add(casedirectory.ContactDetails{CaseReference: "X123456", Name: "Sam Carter"})
	offender, err := f.service.Register(context.Background(), "X123456", "prac-1",
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)
	return offender
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	offender := f.register(t)

	assert.Equal(t, models.StatusInitial, offender.Status)
	assert.Equal(t, id.CaseReference("X123456"), offender.CaseReference)
	assert.Equal(t, 7, offender.IntervalDays)
}

func TestRegisterUnknownReference(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Register(context.Background(), "Z999999", "prac-1", time.Now(), 7)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRegisterRejectsNonPositiveInterval(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Register(context.Background(), "X123456", "prac-1", time.Now(), 0)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCompleteSetupRequiresPhoto(t *testing.T) {
	f := newFixture(t)
	offender := f.register(t)

	_, err := f.service.CompleteSetup(context.Background(), offender.ID)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCompleteSetupVerifiesAndNotifies(t *testing.T) {
	f := newFixture(t)
	offender := f.register(t)
	f.storage.Put(objectstore.ReferencePhotoKey(offender.ID))

	updated, err := f.service.CompleteSetup(context.Background(), offender.ID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, updated.Status)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, audit.EventSetupCompleted, f.notifier.events[0].AuditType)
	assert.True(t, f.notifier.events[0].NotifyOffender)
}

func TestCompleteSetupTwiceIsInvalidState(t *testing.T) {
	f := newFixture(t)
	offender := f.register(t)
	f.storage.Put(objectstore.ReferencePhotoKey(offender.ID))
	_, err := f.service.CompleteSetup(context.Background(), offender.ID)
	require.NoError(t, err)

	_, err = f.service.CompleteSetup(context.Background(), offender.ID)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestDeactivateReactivateRoundTrip(t *testing.T) {
	f := newFixture(t)
	offender := f.register(t)
	f.storage.Put(objectstore.ReferencePhotoKey(offender.ID))
	_, err := f.service.CompleteSetup(context.Background(), offender.ID)
	require.NoError(t, err)

	deactivated, err := f.service.Deactivate(context.Background(), offender.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, deactivated.Status)

	// Deactivating again is a state error, not idempotent.
	_, err = f.service.Deactivate(context.Background(), offender.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	reactivated, err := f.service.Reactivate(context.Background(), offender.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, reactivated.Status)

	facts := f.audit.All()
	require.Len(t, facts, 2)
	assert.Equal(t, audit.EventOffenderDeactivated, facts[0].Type)
	assert.Equal(t, audit.EventOffenderReactivated, facts[1].Type)
}

func TestUpdateSchedule(t *testing.T) {
	f := newFixture(t)
	offender := f.register(t)

	updated, err := f.service.UpdateSchedule(context.Background(), offender.ID,
		time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC), 14)

	require.NoError(t, err)
	assert.Equal(t, 14, updated.IntervalDays)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), updated.FirstCheckin)
}

func TestDeactivateUnknownOffender(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Deactivate(context.Background(), id.NewOffenderID())

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
