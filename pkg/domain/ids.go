// Package domain provides typed identifiers shared across bounded contexts.
// Wrapping uuid.UUID in distinct named types makes cross-type assignment a
// compile error, so an OffenderID can never be passed where a CheckinID is
// expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "esupervision/pkg/domain-errors"
)

// OffenderID identifies a person under supervision.
type OffenderID uuid.UUID

// CheckinID identifies a single check-in occurrence.
type CheckinID uuid.UUID

// NotificationID identifies a persisted notification record.
type NotificationID uuid.UUID

// PractitionerID identifies the practitioner responsible for an offender.
// Practitioner identity lives in the case-management system, so this is an
// opaque string rather than a UUID.
type PractitionerID string

// CaseReference is the external case-management reference (CRN-style) used
// to look up contact details in the case directory.
type CaseReference string

func (r CaseReference) String() string { return string(r) }

// Valid reports whether the reference is non-blank. The directory owns the
// full format; we only guard against empty lookups.
func (r CaseReference) Valid() bool { return strings.TrimSpace(string(r)) != "" }

func (id OffenderID) String() string     { return uuid.UUID(id).String() }
func (id OffenderID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CheckinID) String() string      { return uuid.UUID(id).String() }
func (id CheckinID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewOffenderID mints a random offender ID.
func NewOffenderID() OffenderID { return OffenderID(uuid.New()) }

// NewCheckinID mints a random check-in ID.
func NewCheckinID() CheckinID { return CheckinID(uuid.New()) }

// NewNotificationID mints a random notification ID.
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

// ParseOffenderID validates and parses an offender ID from its string form.
func ParseOffenderID(s string) (OffenderID, error) {
	u, err := parseUUID(s, "offender id")
	return OffenderID(u), err
}

// ParseCheckinID validates and parses a check-in ID from its string form.
func ParseCheckinID(s string) (CheckinID, error) {
	u, err := parseUUID(s, "checkin id")
	return CheckinID(u), err
}

// ParseNotificationID validates and parses a notification ID from its string form.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification id")
	return NotificationID(u), err
}

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Enforced at trust boundaries (transport, wire decoding).
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must not be the nil UUID")
	}
	return u, nil
}
