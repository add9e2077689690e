package warranty

import (
	"time"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/dates"
)

// Unit is the unit a warranty period is expressed in.
type Unit string

const (
	UnitYears  Unit = "years"
	UnitMonths Unit = "months"
)

// ResolveExpiry converts a period to months and adds it to the purchase date
// with calendar-month arithmetic. It returns the expiry date and the period
// in months.
func ResolveExpiry(purchase time.Time, value int, unit Unit) (time.Time, int, error) {
	const op = "warranty.resolve_expiry"
	if value <= 0 {
		return time.Time{}, 0, apperr.Validation(op, "warranty period must be greater than 0")
	}
	months := value
	switch unit {
	case UnitYears:
		months = value * 12
	case UnitMonths:
	default:
		return time.Time{}, 0, apperr.Validation(op, "period unit must be one of: years, months")
	}
	return dates.AddMonths(purchase, months), months, nil
}

// ParseDate parses a purchase date in YYYY-MM-DD or DD-MM-YYYY form.
func ParseDate(s string) (time.Time, error) {
	d, err := dates.Parse(s)
	if err != nil {
		return time.Time{}, apperr.Validation("warranty.parse_date", "%v", err)
	}
	return d, nil
}
