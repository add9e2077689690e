// Package dates implements time-zone-naive calendar date arithmetic.
//
// A date is represented as a time.Time at midnight UTC. Values produced by
// this package are always normalized that way, so subtracting two dates and
// dividing by 24h yields an exact day count.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layouts for storage and display.
const (
	ISOLayout     = "2006-01-02"
	DMYLayout     = "02-01-2006"
	DisplayLayout = "January 02, 2006"
)

// Date builds a normalized date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Of returns the calendar date of t in t's own location, normalized to UTC midnight.
func Of(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Parse accepts ISO YYYY-MM-DD first, then DD-MM-YYYY.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(ISOLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(DMYLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q: expected YYYY-MM-DD or DD-MM-YYYY", s)
}

// Format renders d as YYYY-MM-DD.
func Format(d time.Time) string {
	return d.Format(ISOLayout)
}

// Display renders d as "January 02, 2006".
func Display(d time.Time) string {
	return d.Format(DisplayLayout)
}

// AddMonths adds n calendar months to d, clamping the day to the last day of
// the target month. Jan 31 + 1 month is Feb 28 (or 29 in a leap year).
func AddMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	total := int(m) - 1 + n
	ty := y + floorDiv(total, 12)
	tm := time.Month(floorMod(total, 12) + 1)
	if last := DaysIn(ty, tm); day > last {
		day = last
	}
	return Date(ty, tm, day)
}

// AddDays adds n days to d.
func AddDays(d time.Time, n int) time.Time {
	return Of(d).AddDate(0, 0, n)
}

// DaysBetween returns to − from in whole days. Negative when to is earlier.
func DaysBetween(from, to time.Time) int {
	return int(Of(to).Sub(Of(from)).Hours() / 24)
}

// DaysIn returns the number of days in month m of year y.
func DaysIn(y int, m time.Month) int {
	return Date(y, m+1, 0).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
