// Package events publishes one message per lifecycle event for external
// consumers. The domain event stream is the system of record for those
// consumers, so the orchestrator publishes unconditionally — before contact
// lookup and regardless of notification delivery. Publish failures are
// logged and swallowed; they must never propagate to the caller that
// triggered the event.
package events

import (
	"time"
)

// PersonReference identifies the person an event concerns by an external
// identifier type/value pair (the case reference, today).
type PersonReference struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Event is the published message shape.
type Event struct {
	Type string `json:"eventType"`
	// DetailURL is a callback the consumer can dereference later for
	// human-readable notes about the occurrence.
	DetailURL       string          `json:"detailUrl"`
	OccurredAt      time.Time       `json:"occurredAt"`
	PersonReference PersonReference `json:"personReference"`
}

// Event type identifiers on the wire.
const (
	TypeSetupCompleted   = "esupervision.offender.setup-completed"
	TypeCheckinCreated   = "esupervision.checkin.created"
	TypeCheckinSubmitted = "esupervision.checkin.submitted"
	TypeCheckinReviewed  = "esupervision.checkin.reviewed"
	TypeCheckinExpired   = "esupervision.checkin.expired"
	TypeCheckinReminded  = "esupervision.checkin.reminded"
)

// Publisher emits domain events. Implementations swallow delivery failures
// after logging them, which is why Publish returns nothing.
type Publisher interface {
	Publish(event Event)
}
