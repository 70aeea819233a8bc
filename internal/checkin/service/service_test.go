package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/checkin/models"
	"esupervision/internal/checkin/store"
	"esupervision/internal/facematch"
	"esupervision/internal/notification"
	"esupervision/internal/objectstore"
	offendermodels "esupervision/internal/offender/models"
	offenderstore "esupervision/internal/offender/store"
	"esupervision/internal/platform/logger"
	"esupervision/internal/platform/metrics"
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
	creator   *Creator
	checkins  *store.MemoryStore
	offenders *offenderstore.MemoryStore
	directory *casedirectory.MockClient
	storage   *objectstore.MemoryGateway
	comparer  *facematch.MockComparer
	notifier  *recordingNotifier
	audit     *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		checkins:  store.NewMemory(),
		offenders: offenderstore.NewMemory(),
		directory: casedirectory.NewMock(),
		storage:   objectstore.NewMemory(),
		comparer:  facematch.NewMockComparer(),
		notifier:  &recordingNotifier{},
		audit:     audit.NewMemoryStore(),
	}
	recorder := audit.NewRecorder(f.audit)
	verifier := facematch.NewVerifier(f.comparer, f.storage)
	f.service = New(f.checkins, f.offenders, f.directory, f.storage, verifier,
		f.notifier, recorder, 15*time.Minute, logger.Discard())
	f.creator = NewCreator(f.checkins, f.offenders, f.notifier,
		metrics.NewFor(prometheus.NewRegistry()), logger.Discard())
	return f
}

func (f *fixture) addOffender(t *testing.T, status offendermodels.Status) offendermodels.Offender {
	t.Helper()
	offender := offendermodels.Offender{
		ID:             id.NewOffenderID(),
		CaseReference:  "X123456",
		PractitionerID: "prac-1",
		Status:         status,
		FirstCheckin:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		IntervalDays:   7,
	}
	require.NoError(t, f.offenders.Save(context.Background(), offender))
	f.directory.Add(casedirectory.ContactDetails{
		CaseReference: offender.CaseReference,
		Name:          "Sam Carter",
		PhoneNumber:   "07700900123",
		Email:         "sam@example.com",
	})
	return offender
}

func (f *fixture) createCheckin(t *testing.T, offender offendermodels.Offender) models.Checkin {
	t.Helper()
	checkin, err := f.creator.CreateForDate(context.Background(), offender.ID,
		time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return checkin
}

func (f *fixture) startCheckin(t *testing.T, checkinID id.CheckinID) models.Checkin {
	t.Helper()
	checkin, err := f.service.VerifyIdentity(context.Background(), checkinID,
		casedirectory.PersonalDetails{Name: "Sam Carter", DateOfBirth: "1990-01-01"})
	require.NoError(t, err)
	return checkin
}

func TestVerifyIdentityStampsOnce(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)

	started := f.startCheckin(t, checkin.ID)
	require.NotNil(t, started.CheckinStartedAt)
	first := *started.CheckinStartedAt

	// Re-verifying is a no-op once stamped.
	again := f.startCheckin(t, checkin.ID)
	require.NotNil(t, again.CheckinStartedAt)
	assert.Equal(t, first, *again.CheckinStartedAt)
}

func TestVerifyIdentityRejectsMismatchedDetails(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	f.directory.RejectDetails(offender.CaseReference)

	_, err := f.service.VerifyIdentity(context.Background(), checkin.ID,
		casedirectory.PersonalDetails{Name: "Somebody Else"})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSubmitRequiresIdentityVerification(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	f.storage.Put(objectstore.VideoKey(checkin.ID))

	_, err := f.service.Submit(context.Background(), checkin.ID, models.SurveyResponse{"mood": "fine"})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSubmitRequiresVideo(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	f.startCheckin(t, checkin.ID)

	_, err := f.service.Submit(context.Background(), checkin.ID, nil)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSubmitAndResubmit(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	f.startCheckin(t, checkin.ID)
	f.storage.Put(objectstore.VideoKey(checkin.ID))

	submitted, err := f.service.Submit(context.Background(), checkin.ID, models.SurveyResponse{"mood": "fine"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	// One created + one submitted fan-out.
	require.Len(t, f.notifier.events, 2)
	assert.Equal(t, audit.EventCheckinSubmitted, f.notifier.events[1].AuditType)
	assert.True(t, f.notifier.events[1].NotifyPractitioner)

	_, err = f.service.Submit(context.Background(), checkin.ID, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestVerifyFaceRecordsResult(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	f.storage.Put(objectstore.ReferencePhotoKey(offender.ID))
	f.storage.Put(objectstore.SnapshotKey(checkin.ID, 0))
	f.comparer.Script(objectstore.SnapshotKey(checkin.ID, 0), facematch.ResultMatch)

	updated, err := f.service.VerifyFace(context.Background(), checkin.ID, []int{0})

	require.NoError(t, err)
	assert.Equal(t, models.ResultMatch, updated.AutoIDCheck)

	// Re-running overwrites the earlier result.
	f.comparer.Script(objectstore.SnapshotKey(checkin.ID, 0), facematch.ResultNoMatch)
	updated, err = f.service.VerifyFace(context.Background(), checkin.ID, []int{0})
	require.NoError(t, err)
	assert.Equal(t, models.ResultNoMatch, updated.AutoIDCheck)
}

func TestVerifyFaceRequiresVerifiedOffender(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	offender.Status = offendermodels.StatusInactive
	require.NoError(t, f.offenders.Update(context.Background(), offender))

	_, err := f.service.VerifyFace(context.Background(), checkin.ID, []int{0})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestVerifyFaceRejectedAfterSubmission(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	f.startCheckin(t, checkin.ID)
	f.storage.Put(objectstore.ReferencePhotoKey(offender.ID))
	f.storage.Put(objectstore.SnapshotKey(checkin.ID, 0))
	f.storage.Put(objectstore.VideoKey(checkin.ID))
	f.comparer.Script(objectstore.SnapshotKey(checkin.ID, 0), facematch.ResultMatch)

	_, err := f.service.VerifyFace(context.Background(), checkin.ID, []int{0})
	require.NoError(t, err)
	_, err = f.service.Submit(context.Background(), checkin.ID, models.SurveyResponse{"mood": "fine"})
	require.NoError(t, err)
	_, err = f.service.Review(context.Background(), checkin.ID, "prac-1", "all clear", models.ResultMatch)
	require.NoError(t, err)

	// A rerun after review must not rewrite the evidence the practitioner saw.
	f.comparer.Script(objectstore.SnapshotKey(checkin.ID, 0), facematch.ResultNoMatch)
	_, err = f.service.VerifyFace(context.Background(), checkin.ID, []int{0})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	stored, err := f.checkins.FindByID(context.Background(), checkin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultMatch, stored.AutoIDCheck)
}

func TestReviewAfterSubmission(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	f.startCheckin(t, checkin.ID)
	f.storage.Put(objectstore.VideoKey(checkin.ID))
	_, err := f.service.Submit(context.Background(), checkin.ID, models.SurveyResponse{"mood": "fine"})
	require.NoError(t, err)

	reviewed, err := f.service.Review(context.Background(), checkin.ID, "prac-1", "all clear", models.ResultMatch)

	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, reviewed.Status)
	assert.Equal(t, models.ResultMatch, reviewed.ManualIDCheck)

	require.NotEmpty(t, f.notifier.events)
	event := f.notifier.events[len(f.notifier.events)-1]
	assert.Equal(t, audit.EventReviewedAfterSubmission, event.AuditType)
	assert.Equal(t, "all clear", event.Comment)
	assert.Greater(t, event.TimeToReview, time.Duration(0))
}

func TestReviewAfterExpiry(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)
	_, err := f.checkins.ExpireBatch(context.Background(), []id.CheckinID{checkin.ID}, time.Now())
	require.NoError(t, err)

	reviewed, err := f.service.Review(context.Background(), checkin.ID, "prac-1", "missed window, followed up by phone", models.ResultError)

	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, reviewed.Status)
	require.NotEmpty(t, f.notifier.events)
	event := f.notifier.events[len(f.notifier.events)-1]
	assert.Equal(t, audit.EventReviewedAfterExpiry, event.AuditType)
	assert.Equal(t, "missed window, followed up by phone", event.Comment)
}

func TestReviewRequiresNote(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)

	_, err := f.service.Review(context.Background(), checkin.ID, "prac-1", "   ", models.ResultMatch)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestReviewFromCreatedIsInvalidState(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)

	_, err := f.service.Review(context.Background(), checkin.ID, "prac-1", "note", models.ResultMatch)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestAnnotate(t *testing.T) {
	f := newFixture(t)
	offender := f.addOffender(t, offendermodels.StatusVerified)
	checkin := f.createCheckin(t, offender)

	// Annotation only applies to finished check-ins.
	err := f.service.Annotate(context.Background(), checkin.ID, "prac-1", "note")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = f.checkins.ExpireBatch(context.Background(), []id.CheckinID{checkin.ID}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.service.Annotate(context.Background(), checkin.ID, "prac-1", "spoke to offender"))

	facts := f.audit.All()
	require.Len(t, facts, 1)
	assert.Equal(t, audit.EventCheckinAnnotated, facts[0].Type)
}
