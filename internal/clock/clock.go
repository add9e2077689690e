// Package clock supplies wall-clock time to the services.
//
// Services never call time.Now directly. They take a Clock so the cadence
// rules can be exercised against any calendar day in tests.
package clock

import (
	"time"

	"github.com/roach88/warranty/internal/dates"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the process wall clock in the local time zone.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Today returns the calendar date of c.Now(), normalized to UTC midnight.
func Today(c Clock) time.Time {
	return dates.Of(c.Now())
}
