// Package models holds the notification record and its channel sum type.
package models

import (
	"time"

	id "esupervision/pkg/domain"
)

// RecipientType says who a notification addresses.
type RecipientType string

const (
	RecipientOffender     RecipientType = "OFFENDER"
	RecipientPractitioner RecipientType = "PRACTITIONER"
)

// Channel is a closed set of delivery channels, each carrying its own
// recipient shape. The unexported method keeps the set closed so a switch
// over the two concrete types is exhaustive.
type Channel interface {
	Kind() ChannelKind
	// Recipient is the provider-facing address: a phone number for SMS,
	// an email address for Email.
	Recipient() string

	channel()
}

type ChannelKind string

const (
	KindSMS   ChannelKind = "SMS"
	KindEmail ChannelKind = "EMAIL"
)

// SMS delivers to a mobile phone number.
type SMS struct {
	Phone string
}

func (SMS) Kind() ChannelKind   { return KindSMS }
func (c SMS) Recipient() string { return c.Phone }
func (SMS) channel()            {}

// Email delivers to an email address.
type Email struct {
	Address string
}

func (Email) Kind() ChannelKind   { return KindEmail }
func (c Email) Recipient() string { return c.Address }
func (Email) channel()            {}

// ChannelOf rebuilds a Channel from its stored kind/recipient columns.
func ChannelOf(kind ChannelKind, recipient string) Channel {
	if kind == KindSMS {
		return SMS{Phone: recipient}
	}
	return Email{Address: recipient}
}

// Local statuses, set before and immediately after the delivery call.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Provider statuses are stored verbatim; these four end reconciliation for a
// record.
var terminalStatuses = map[string]struct{}{
	"delivered":         {},
	"permanent-failure": {},
	"temporary-failure": {},
	"technical-failure": {},
}

// IsTerminal reports whether the reconciliation workers should stop polling
// the provider for a record in this status.
func IsTerminal(status string) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// Notification is one delivery attempt to one recipient over one channel.
// Created pending, moved to sent/failed right after the provider call, then
// nudged toward a terminal provider status by the reconciliation workers.
type Notification struct {
	ID            id.NotificationID
	EventType     string
	OffenderID    id.OffenderID
	CheckinID     id.CheckinID // nil UUID for offender-level events
	RecipientType RecipientType
	Channel       Channel
	TemplateID    string
	// Reference groups the records of one orchestration for provider-side
	// status lookup.
	Reference  string
	ProviderID string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
