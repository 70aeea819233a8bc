// Package service owns the offender lifecycle: registration, setup
// completion, schedule changes, and the reversible INACTIVE switch.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/events"
	"esupervision/internal/notification"
	"esupervision/internal/objectstore"
	"esupervision/internal/offender/models"
	"esupervision/internal/offender/store"
	id "esupervision/pkg/domain"
	dErrors "esupervision/pkg/domain-errors"
	"esupervision/pkg/platform/sentinel"
)

// Notifier is the slice of the notification orchestrator the service needs.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event) error
}

type Service struct {
	store     store.Store
	directory casedirectory.Client
	storage   objectstore.Gateway
	notifier  Notifier
	audit     *audit.Recorder
	uploadTTL time.Duration
	log       *log.Logger
}

func New(offenderStore store.Store, directory casedirectory.Client, storage objectstore.Gateway, notifier Notifier, recorder *audit.Recorder, uploadTTL time.Duration, logger *log.Logger) *Service {
	return &Service{
		store:     offenderStore,
		directory: directory,
		storage:   storage,
		notifier:  notifier,
		audit:     recorder,
		uploadTTL: uploadTTL,
		log:       logger,
	}
}

// Register starts setup for a case reference: the reference must resolve in
// the case directory and must not already be under supervision.
func (s *Service) Register(ctx context.Context, ref id.CaseReference, practitionerID id.PractitionerID, firstCheckin time.Time, intervalDays int) (models.Offender, error) {
	if !ref.Valid() {
		return models.Offender{}, dErrors.New(dErrors.CodeValidation, "case reference is required")
	}
	if intervalDays <= 0 {
		return models.Offender{}, dErrors.New(dErrors.CodeValidation, "check-in interval must be at least one day")
	}

	if _, err := s.directory.Get(ctx, ref); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Offender{}, dErrors.Newf(dErrors.CodeNotFound, "case reference %s not found in directory", ref)
		}
		return models.Offender{}, dErrors.Wrap(err, dErrors.CodeUpstream, "case directory lookup failed")
	}

	now := time.Now()
	offender := models.Offender{
		ID:             id.NewOffenderID(),
		CaseReference:  ref,
		PractitionerID: practitionerID,
		Status:         models.StatusInitial,
		FirstCheckin:   models.DateOf(firstCheckin),
		IntervalDays:   intervalDays,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Save(ctx, offender); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Offender{}, dErrors.Newf(dErrors.CodeValidation, "case reference %s is already registered", ref)
		}
		return models.Offender{}, err
	}
	return offender, nil
}

// PhotoUploadURL issues a presigned PUT for the offender's reference photo.
func (s *Service) PhotoUploadURL(ctx context.Context, offenderID id.OffenderID) (string, error) {
	offender, err := s.get(ctx, offenderID)
	if err != nil {
		return "", err
	}
	return s.storage.PresignPut(ctx, objectstore.ReferencePhotoKey(offender.ID), s.uploadTTL)
}

// CompleteSetup moves INITIAL → VERIFIED once the reference photo is in
// storage, then fans out the setup-complete notifications.
func (s *Service) CompleteSetup(ctx context.Context, offenderID id.OffenderID) (models.Offender, error) {
	offender, err := s.get(ctx, offenderID)
	if err != nil {
		return models.Offender{}, err
	}
	if offender.Status != models.StatusInitial {
		return models.Offender{}, dErrors.Newf(dErrors.CodeInvalidState, "setup cannot complete from status %s", offender.Status)
	}

	exists, err := s.storage.Exists(ctx, objectstore.ReferencePhotoKey(offender.ID))
	if err != nil {
		return models.Offender{}, dErrors.Wrap(err, dErrors.CodeUpstream, "object storage check failed")
	}
	if !exists {
		return models.Offender{}, dErrors.New(dErrors.CodeValidation, "reference photo has not been uploaded")
	}

	offender.Status = models.StatusVerified
	offender.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, offender); err != nil {
		return models.Offender{}, err
	}

	if err := s.notifier.Notify(ctx, notification.Event{
		AuditType:      audit.EventSetupCompleted,
		StreamType:     events.TypeSetupCompleted,
		OffenderID:     offender.ID,
		CaseReference:  offender.CaseReference,
		PractitionerID: offender.PractitionerID,
		NotifyOffender: true,
	}); err != nil {
		// Fan-out failures never surface to the practitioner completing setup.
		s.log.Printf("offender: setup-complete fan-out for %s: %v", offender.ID, err)
	}
	return offender, nil
}

// Deactivate suspends check-in creation for the offender. Reversible.
func (s *Service) Deactivate(ctx context.Context, offenderID id.OffenderID) (models.Offender, error) {
	return s.switchStatus(ctx, offenderID,
		models.StatusVerified, models.StatusInactive, audit.EventOffenderDeactivated)
}

// Reactivate resumes a deactivated offender.
func (s *Service) Reactivate(ctx context.Context, offenderID id.OffenderID) (models.Offender, error) {
	return s.switchStatus(ctx, offenderID,
		models.StatusInactive, models.StatusVerified, audit.EventOffenderReactivated)
}

func (s *Service) switchStatus(ctx context.Context, offenderID id.OffenderID, from, to models.Status, auditType audit.EventType) (models.Offender, error) {
	offender, err := s.get(ctx, offenderID)
	if err != nil {
		return models.Offender{}, err
	}
	if offender.Status != from {
		return models.Offender{}, dErrors.Newf(dErrors.CodeInvalidState, "cannot move to %s from status %s", to, offender.Status)
	}
	offender.Status = to
	offender.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, offender); err != nil {
		return models.Offender{}, err
	}
	if err := s.audit.Record(ctx, audit.Event{
		Type:           auditType,
		OffenderID:     offender.ID,
		PractitionerID: offender.PractitionerID,
	}); err != nil {
		s.log.Printf("offender: audit %s for %s: %v", auditType, offender.ID, err)
	}
	return offender, nil
}

// UpdateSchedule changes the recurring schedule; takes effect from the next
// worker run.
func (s *Service) UpdateSchedule(ctx context.Context, offenderID id.OffenderID, firstCheckin time.Time, intervalDays int) (models.Offender, error) {
	if intervalDays <= 0 {
		return models.Offender{}, dErrors.New(dErrors.CodeValidation, "check-in interval must be at least one day")
	}
	offender, err := s.get(ctx, offenderID)
	if err != nil {
		return models.Offender{}, err
	}
	offender.FirstCheckin = models.DateOf(firstCheckin)
	offender.IntervalDays = intervalDays
	offender.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, offender); err != nil {
		return models.Offender{}, err
	}
	return offender, nil
}

// Get returns one offender by id.
func (s *Service) Get(ctx context.Context, offenderID id.OffenderID) (models.Offender, error) {
	return s.get(ctx, offenderID)
}

func (s *Service) get(ctx context.Context, offenderID id.OffenderID) (models.Offender, error) {
	offender, err := s.store.FindByID(ctx, offenderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Offender{}, dErrors.Newf(dErrors.CodeNotFound, "offender %s not found", offenderID)
		}
		return models.Offender{}, err
	}
	return offender, nil
}
