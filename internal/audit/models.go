package audit

import (
	"time"

	id "esupervision/pkg/domain"
)

// EventType classifies a domain occurrence. The reviewed types encode the
// predecessor state on purpose: reporting distinguishes "reviewed after a
// timely submission" from "reviewed after expiry".
type EventType string

const (
	EventSetupCompleted          EventType = "offender_setup_completed"
	EventOffenderDeactivated     EventType = "offender_deactivated"
	EventOffenderReactivated     EventType = "offender_reactivated"
	EventCheckinCreated          EventType = "checkin_created"
	EventCheckinSubmitted        EventType = "checkin_submitted"
	EventReviewedAfterSubmission EventType = "checkin_reviewed_after_submission"
	EventReviewedAfterExpiry     EventType = "checkin_reviewed_after_expiry"
	EventCheckinExpired          EventType = "checkin_expired"
	EventCheckinReminded         EventType = "checkin_reminded"
	EventCheckinAnnotated        EventType = "checkin_annotated"
	EventUndeliverable           EventType = "notification_undeliverable"
)

// Event is a denormalized, append-only fact row. Timing deltas are carried
// here so reporting never has to re-derive them by joining phase timestamps.
type Event struct {
	Type           EventType
	OffenderID     id.OffenderID
	CheckinID      id.CheckinID // nil UUID when the fact is offender-level
	PractitionerID id.PractitionerID
	Comment        string

	// TimeToSubmit: submittedAt - dueDate; TimeToReview: reviewedAt - submittedAt.
	// Zero when not applicable to the event type.
	TimeToSubmit time.Duration
	TimeToReview time.Duration

	OccurredAt time.Time
}
