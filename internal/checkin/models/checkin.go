package models

import (
	"time"

	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
)

// Status is the check-in lifecycle state. The enum is authoritative; the
// phase timestamps below record when each transition happened but never
// encode state on their own.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusSubmitted Status = "SUBMITTED"
	StatusReviewed  Status = "REVIEWED"
	StatusExpired   Status = "EXPIRED"
)

// IdentityCheckResult is the outcome of an automated or manual face match.
type IdentityCheckResult string

const (
	ResultMatch          IdentityCheckResult = "MATCH"
	ResultNoMatch        IdentityCheckResult = "NO_MATCH"
	ResultNoFaceDetected IdentityCheckResult = "NO_FACE_DETECTED"
	ResultError          IdentityCheckResult = "ERROR"
)

// SurveyResponse is the opaque key/value document captured at submission.
// The service stores it verbatim; question semantics live in the UI layer.
type SurveyResponse map[string]any

// Checkin is one occurrence of the recurring check-in obligation.
// At most one exists per (offender, due date).
type Checkin struct {
	ID         id.CheckinID
	OffenderID id.OffenderID
	DueDate    time.Time // date-valued, UTC midnight
	Status     Status

	Survey        SurveyResponse
	AutoIDCheck   IdentityCheckResult // from the facial verification bridge; overwritten on re-run
	ManualIDCheck IdentityCheckResult // from the reviewing practitioner

	// Phase timestamps, stamped by transitions and never cleared.
	CheckinStartedAt *time.Time // identity verified against the directory
	SubmittedAt      *time.Time
	ReviewStartedAt  *time.Time
	ReviewedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// transitions is the full state machine. Verification and annotation are
// side operations that keep the state unchanged, so they are not listed here.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusSubmitted, StatusExpired},
	StatusSubmitted: {StatusReviewed},
	StatusExpired:   {StatusReviewed},
	StatusReviewed:  {},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the check-in to the target state, returning
// sentinel.ErrInvalidState on an illegal edge. All state changes in the
// service layer go through here so the guard cannot be bypassed.
func (c *Checkin) Transition(to Status, at time.Time) error {
	if !CanTransition(c.Status, to) {
		return sentinel.ErrInvalidState
	}
	c.Status = to
	c.UpdatedAt = at
	switch to {
	case StatusSubmitted:
		c.SubmittedAt = &at
	case StatusReviewed:
		c.ReviewedAt = &at
	case StatusExpired, StatusCreated:
		// no phase timestamp for these edges
	}
	return nil
}

// IdentityVerified reports whether the offender proved identity for this
// check-in (precondition for submission).
func (c *Checkin) IdentityVerified() bool {
	return c.CheckinStartedAt != nil
}

// ExpiredBefore reports whether a CREATED check-in is past its grace window
// as of the given date.
func (c *Checkin) ExpiredBefore(cutoff time.Time) bool {
	return c.Status == StatusCreated && c.DueDate.Before(cutoff)
}
