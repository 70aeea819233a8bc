// Package service owns the check-in state machine and every operation that
// moves a check-in through it. All state changes funnel through
// models.Transition, so an illegal edge can only ever surface as an
// invalid-state error, never as silently corrupted rows.
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/checkin/models"
	"esupervision/internal/checkin/store"
	"esupervision/internal/events"
	"esupervision/internal/facematch"
	"esupervision/internal/notification"
	"esupervision/internal/objectstore"
	offendermodels "esupervision/internal/offender/models"
	offenderstore "esupervision/internal/offender/store"
	id "esupervision/pkg/domain"
	dErrors "esupervision/pkg/domain-errors"
	"esupervision/pkg/platform/sentinel"
)

// Notifier is the slice of the notification orchestrator the service needs.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event) error
}

type Service struct {
	checkins  store.Store
	offenders offenderstore.Store
	directory casedirectory.Client
	storage   objectstore.Gateway
	verifier  *facematch.Verifier
	notifier  Notifier
	audit     *audit.Recorder
	uploadTTL time.Duration
	log       *log.Logger
}

func New(
	checkins store.Store,
	offenders offenderstore.Store,
	directory casedirectory.Client,
	storage objectstore.Gateway,
	verifier *facematch.Verifier,
	notifier Notifier,
	recorder *audit.Recorder,
	uploadTTL time.Duration,
	logger *log.Logger,
) *Service {
	return &Service{
		checkins:  checkins,
		offenders: offenders,
		directory: directory,
		storage:   storage,
		verifier:  verifier,
		notifier:  notifier,
		audit:     recorder,
		uploadTTL: uploadTTL,
		log:       logger,
	}
}

// Get returns one check-in by id.
func (s *Service) Get(ctx context.Context, checkinID id.CheckinID) (models.Checkin, error) {
	return s.find(ctx, checkinID)
}

// VerifyIdentity validates the supplied personal details against the case
// directory and stamps CheckinStartedAt. Re-verifying an already-started
// check-in is a no-op. A directory mismatch is a validation failure, not an
// error: the person typed something wrong.
func (s *Service) VerifyIdentity(ctx context.Context, checkinID id.CheckinID, details casedirectory.PersonalDetails) (models.Checkin, error) {
	checkin, err := s.find(ctx, checkinID)
	if err != nil {
		return models.Checkin{}, err
	}
	if checkin.Status != models.StatusCreated {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeInvalidState, "identity verification is not allowed in status %s", checkin.Status)
	}

	offender, err := s.findOffender(ctx, checkin.OffenderID)
	if err != nil {
		return models.Checkin{}, err
	}

	valid, err := s.directory.Validate(ctx, offender.CaseReference, details)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Checkin{}, dErrors.Newf(dErrors.CodeNotFound, "case reference %s not found in directory", offender.CaseReference)
		}
		return models.Checkin{}, dErrors.Wrap(err, dErrors.CodeUpstream, "case directory validation failed")
	}
	if !valid {
		return models.Checkin{}, dErrors.New(dErrors.CodeValidation, "personal details did not match the case record")
	}

	if checkin.IdentityVerified() {
		return checkin, nil
	}
	now := time.Now()
	checkin.CheckinStartedAt = &now
	checkin.UpdatedAt = now
	if err := s.checkins.Update(ctx, checkin); err != nil {
		return models.Checkin{}, err
	}
	return checkin, nil
}

// VideoUploadURL issues a presigned PUT for the submission video.
func (s *Service) VideoUploadURL(ctx context.Context, checkinID id.CheckinID) (string, error) {
	checkin, err := s.find(ctx, checkinID)
	if err != nil {
		return "", err
	}
	return s.storage.PresignPut(ctx, objectstore.VideoKey(checkin.ID), s.uploadTTL)
}

// SnapshotUploadURL issues a presigned PUT for the nth identity snapshot.
func (s *Service) SnapshotUploadURL(ctx context.Context, checkinID id.CheckinID, index int) (string, error) {
	checkin, err := s.find(ctx, checkinID)
	if err != nil {
		return "", err
	}
	if index < 0 {
		return "", dErrors.New(dErrors.CodeValidation, "snapshot index must not be negative")
	}
	return s.storage.PresignPut(ctx, objectstore.SnapshotKey(checkin.ID, index), s.uploadTTL)
}

// Submit moves CREATED → SUBMITTED. Preconditions: identity verified for
// this check-in and the video object present in storage. Resubmission fails
// with invalid state.
func (s *Service) Submit(ctx context.Context, checkinID id.CheckinID, survey models.SurveyResponse) (models.Checkin, error) {
	checkin, err := s.find(ctx, checkinID)
	if err != nil {
		return models.Checkin{}, err
	}
	if checkin.Status != models.StatusCreated {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeInvalidState, "cannot submit a check-in in status %s", checkin.Status)
	}
	if !checkin.IdentityVerified() {
		return models.Checkin{}, dErrors.New(dErrors.CodeValidation, "identity has not been verified for this check-in")
	}

	videoExists, err := s.storage.Exists(ctx, objectstore.VideoKey(checkin.ID))
	if err != nil {
		return models.Checkin{}, dErrors.Wrap(err, dErrors.CodeUpstream, "object storage check failed")
	}
	if !videoExists {
		return models.Checkin{}, dErrors.New(dErrors.CodeValidation, "submission video has not been uploaded")
	}

	now := time.Now()
	if err := checkin.Transition(models.StatusSubmitted, now); err != nil {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeInvalidState, "cannot submit a check-in in status %s", checkin.Status)
	}
	checkin.Survey = survey
	if err := s.checkins.Update(ctx, checkin); err != nil {
		return models.Checkin{}, err
	}

	offender, err := s.findOffender(ctx, checkin.OffenderID)
	if err == nil {
		s.fanOut(ctx, notification.Event{
			AuditType:          audit.EventCheckinSubmitted,
			StreamType:         events.TypeCheckinSubmitted,
			OffenderID:         offender.ID,
			CaseReference:      offender.CaseReference,
			PractitionerID:     offender.PractitionerID,
			CheckinID:          checkin.ID,
			DueDate:            checkin.DueDate,
			TimeToSubmit:       now.Sub(checkin.DueDate),
			NotifyPractitioner: true,
		})
	}
	return checkin, nil
}

// VerifyFace runs the facial verification bridge and records the result on
// the check-in, overwriting any earlier run. Only open check-ins qualify;
// once submitted the automated result is part of the record under review.
func (s *Service) VerifyFace(ctx context.Context, checkinID id.CheckinID, snapshots []int) (models.Checkin, error) {
	checkin, err := s.find(ctx, checkinID)
	if err != nil {
		return models.Checkin{}, err
	}
	if checkin.Status != models.StatusCreated {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeInvalidState, "facial verification is not allowed in status %s", checkin.Status)
	}
	offender, err := s.findOffender(ctx, checkin.OffenderID)
	if err != nil {
		return models.Checkin{}, err
	}
	if offender.Status != offendermodels.StatusVerified {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeInvalidState, "facial verification requires a VERIFIED offender, not %s", offender.Status)
	}

	result, err := s.verifier.Verify(ctx, offender.ID, checkin.ID, snapshots)
	if err != nil {
		return models.Checkin{}, err
	}
	checkin.AutoIDCheck = models.IdentityCheckResult(result)
	checkin.UpdatedAt = time.Now()
	if err := s.checkins.Update(ctx, checkin); err != nil {
		return models.Checkin{}, err
	}
	return checkin, nil
}

// Review moves SUBMITTED|EXPIRED → REVIEWED with a mandatory note. The audit
// subtype records which predecessor the review came from.
func (s *Service) Review(ctx context.Context, checkinID id.CheckinID, practitionerID id.PractitionerID, comment string, manualCheck models.IdentityCheckResult) (models.Checkin, error) {
	if isBlank(comment) {
		return models.Checkin{}, dErrors.New(dErrors.CodeValidation, "a review note is required")
	}

	checkin, err := s.find(ctx, checkinID)
	if err != nil {
		return models.Checkin{}, err
	}
	predecessor := checkin.Status

	now := time.Now()
	if err := checkin.Transition(models.StatusReviewed, now); err != nil {
		return models.Checkin{}, dErrors.Newf(dErrors.CodeInvalidState, "cannot review a check-in in status %s", checkin.Status)
	}
	checkin.ManualIDCheck = manualCheck
	if checkin.ReviewStartedAt == nil {
		checkin.ReviewStartedAt = &now
	}
	if err := s.checkins.Update(ctx, checkin); err != nil {
		return models.Checkin{}, err
	}

	event := notification.Event{
		AuditType:      audit.EventReviewedAfterExpiry,
		StreamType:     events.TypeCheckinReviewed,
		OffenderID:     checkin.OffenderID,
		PractitionerID: practitionerID,
		CheckinID:      checkin.ID,
		DueDate:        checkin.DueDate,
		Comment:        comment,
	}
	if predecessor == models.StatusSubmitted {
		event.AuditType = audit.EventReviewedAfterSubmission
		if checkin.SubmittedAt != nil {
			event.TimeToReview = now.Sub(*checkin.SubmittedAt)
		}
	}
	if offender, err := s.findOffender(ctx, checkin.OffenderID); err == nil {
		event.CaseReference = offender.CaseReference
	}
	s.fanOut(ctx, event)
	return checkin, nil
}

// Annotate appends a practitioner note to a finished check-in without
// touching its state.
func (s *Service) Annotate(ctx context.Context, checkinID id.CheckinID, practitionerID id.PractitionerID, comment string) error {
	if isBlank(comment) {
		return dErrors.New(dErrors.CodeValidation, "an annotation note is required")
	}
	checkin, err := s.find(ctx, checkinID)
	if err != nil {
		return err
	}
	if checkin.Status != models.StatusReviewed && checkin.Status != models.StatusExpired {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot annotate a check-in in status %s", checkin.Status)
	}
	return s.audit.Record(ctx, audit.Event{
		Type:           audit.EventCheckinAnnotated,
		OffenderID:     checkin.OffenderID,
		CheckinID:      checkin.ID,
		PractitionerID: practitionerID,
		Comment:        comment,
	})
}

func (s *Service) fanOut(ctx context.Context, event notification.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		// Fan-out problems never reach the caller that triggered the event.
		s.log.Printf("checkin: fan-out %s for offender %s: %v", event.AuditType, event.OffenderID, err)
	}
}

func (s *Service) find(ctx context.Context, checkinID id.CheckinID) (models.Checkin, error) {
	checkin, err := s.checkins.FindByID(ctx, checkinID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Checkin{}, dErrors.Newf(dErrors.CodeNotFound, "check-in %s not found", checkinID)
		}
		return models.Checkin{}, err
	}
	return checkin, nil
}

func (s *Service) findOffender(ctx context.Context, offenderID id.OffenderID) (offendermodels.Offender, error) {
	offender, err := s.offenders.FindByID(ctx, offenderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return offendermodels.Offender{}, dErrors.Newf(dErrors.CodeNotFound, "offender %s not found", offenderID)
		}
		return offendermodels.Offender{}, err
	}
	return offender, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
