package notify

import (
	"fmt"
	"time"

	"github.com/roach88/warranty/internal/dates"
)

// Cadence windows, in days relative to the expiry date.
const (
	// GraceDays is how long daily reminders continue after expiry.
	GraceDays = 7

	// DailyDays is the run-up during which reminders fire every day.
	DailyDays = 7

	// WeeklyDays is the outer edge of the weekly reminder window.
	WeeklyDays = 30

	// DefaultLookahead is the on-demand window used when none is given.
	DefaultLookahead = 7

	// DefaultWeeklyDay is the weekday on which 8-30 day reminders fire.
	DefaultWeeklyDay = time.Monday
)

// Eligible reports whether a warranty expiring on expiry is due a reminder on
// today:
//
//	d < -7          never
//	-7 <= d <= 7    every day
//	8 <= d <= 30    only on the weekly day
//	d > 30          never
//
// where d is expiry minus today in days. The result is the same no matter how
// many times a day it is asked; the notification uniqueness constraint is what
// limits a reminder to one record.
func Eligible(today, expiry time.Time, weekly time.Weekday) bool {
	d := dates.DaysBetween(today, expiry)
	switch {
	case d < -GraceDays:
		return false
	case d <= DailyDays:
		return true
	case d <= WeeklyDays:
		return dates.Of(today).Weekday() == weekly
	default:
		return false
	}
}

// EligibleWithin is the on-demand rule: anything already expired, or
// expiring within lookahead days (DefaultLookahead when lookahead < 0).
func EligibleWithin(today, expiry time.Time, lookahead int) bool {
	if lookahead < 0 {
		lookahead = DefaultLookahead
	}
	return dates.DaysBetween(today, expiry) <= lookahead
}

// Expired reports whether expiry is strictly before today.
func Expired(today, expiry time.Time) bool {
	return dates.DaysBetween(today, expiry) < 0
}

// Message renders the notification text. The text embeds the formatted
// expiry date and is the de-duplication key, so the wording must stay stable.
func Message(productName string, expiry time.Time, expired bool) string {
	if expired {
		return fmt.Sprintf("Your warranty for '%s' has expired on %s.", productName, dates.Display(expiry))
	}
	return fmt.Sprintf("Your warranty for '%s' expires on %s.", productName, dates.Display(expiry))
}

// Subject renders the mail subject line.
func Subject(productName string, expired bool) string {
	if expired {
		return "Warranty expired: " + productName
	}
	return "Warranty reminder: " + productName
}

// Body renders the mail body around the notification message.
func Body(fullName, message string) string {
	return fmt.Sprintf("Hello %s,\n\n%s\n\nLog in to review your warranties and file a claim if needed.\n", fullName, message)
}
