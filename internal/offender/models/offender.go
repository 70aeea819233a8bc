package models

import (
	"time"

	id "esupervision/pkg/domain"
)

// Status is the offender lifecycle state.
type Status string

const (
	// StatusInitial: registered by a practitioner, setup not yet complete.
	StatusInitial Status = "INITIAL"
	// StatusVerified: setup complete, reference photo present. Only VERIFIED
	// offenders may have check-ins created.
	StatusVerified Status = "VERIFIED"
	// StatusInactive: deactivated. Reversible; offenders are never hard-deleted.
	StatusInactive Status = "INACTIVE"
)

// Offender is a person under supervision with a recurring check-in schedule.
type Offender struct {
	ID             id.OffenderID
	CaseReference  id.CaseReference
	PractitionerID id.PractitionerID
	Status         Status

	// Schedule: a check-in falls due on FirstCheckin and every
	// IntervalDays thereafter.
	FirstCheckin time.Time // date-valued, UTC midnight
	IntervalDays int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueOn reports whether a check-in falls due on the given date per the
// schedule arithmetic: due iff today >= firstCheckin and the whole-day
// difference is an exact multiple of the interval. Status is not considered
// here; eligibility queries filter on VERIFIED separately.
func (o Offender) DueOn(today time.Time) bool {
	if o.IntervalDays <= 0 {
		return false
	}
	first := DateOf(o.FirstCheckin)
	day := DateOf(today)
	if day.Before(first) {
		return false
	}
	days := int(day.Sub(first).Hours() / 24)
	return days%o.IntervalDays == 0
}

// DateOf truncates a timestamp to its UTC date. All due-date comparisons go
// through this so a worker running at 23:59 and one at 00:01 agree on "today"
// only when they are genuinely the same UTC day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
