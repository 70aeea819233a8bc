package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueOn_ScheduleArithmetic(t *testing.T) {
	o := Offender{
		FirstCheckin: date(2025, time.January, 1),
		IntervalDays: 7,
	}

	due := []time.Time{
		date(2025, time.January, 1),
		date(2025, time.January, 8),
		date(2025, time.January, 15),
		date(2025, time.February, 5),
	}
	for _, d := range due {
		assert.True(t, o.DueOn(d), "expected due on %s", d.Format("2006-01-02"))
	}

	notDue := []time.Time{
		date(2025, time.January, 2),
		date(2025, time.January, 7),
		date(2025, time.January, 9),
		date(2024, time.December, 25), // before first check-in
	}
	for _, d := range notDue {
		assert.False(t, o.DueOn(d), "expected not due on %s", d.Format("2006-01-02"))
	}
}

func TestDueOn_FirstCheckinItselfIsDue(t *testing.T) {
	o := Offender{FirstCheckin: date(2025, time.June, 1), IntervalDays: 7}
	assert.True(t, o.DueOn(date(2025, time.June, 1)))
	assert.True(t, o.DueOn(date(2025, time.June, 8)))
}

func TestDueOn_IgnoresTimeOfDay(t *testing.T) {
	o := Offender{FirstCheckin: date(2025, time.January, 1), IntervalDays: 7}
	lateEvening := time.Date(2025, time.January, 8, 23, 59, 0, 0, time.UTC)
	assert.True(t, o.DueOn(lateEvening))
}

func TestDueOn_ZeroIntervalNeverDue(t *testing.T) {
	o := Offender{FirstCheckin: date(2025, time.January, 1), IntervalDays: 0}
	assert.False(t, o.DueOn(date(2025, time.January, 1)))
}
