package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/warranty/internal/dates"
)

var (
	monday  = dates.Date(2024, time.March, 4)
	tuesday = dates.Date(2024, time.March, 5)
)

func TestEligible(t *testing.T) {
	tests := []struct {
		name   string
		today  time.Time
		offset int
		want   bool
	}{
		{"8 days past expiry", tuesday, -8, false},
		{"7 days past expiry", tuesday, -7, true},
		{"1 day past expiry", tuesday, -1, true},
		{"expires today", tuesday, 0, true},
		{"7 days out", tuesday, 7, true},
		{"8 days out on weekly day", monday, 8, true},
		{"8 days out off weekly day", tuesday, 8, false},
		{"30 days out on weekly day", monday, 30, true},
		{"30 days out off weekly day", tuesday, 30, false},
		{"31 days out on weekly day", monday, 31, false},
		{"31 days out off weekly day", tuesday, 31, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expiry := dates.AddDays(tt.today, tt.offset)
			assert.Equal(t, tt.want, Eligible(tt.today, expiry, time.Monday))
		})
	}
}

func TestEligible_DailyUntilExpiry(t *testing.T) {
	expiry := dates.AddDays(tuesday, 7)
	for day := tuesday; !day.After(expiry); day = dates.AddDays(day, 1) {
		assert.True(t, Eligible(day, expiry, time.Monday), dates.Format(day))
	}
}

func TestEligible_IgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2024, time.March, 5, 23, 59, 0, 0, time.UTC)
	assert.True(t, Eligible(late, dates.AddDays(tuesday, -7), time.Monday))
	assert.False(t, Eligible(late, dates.AddDays(tuesday, -8), time.Monday))
}

func TestEligible_ConfigurableWeeklyDay(t *testing.T) {
	expiry := dates.AddDays(tuesday, 10)
	assert.True(t, Eligible(tuesday, expiry, time.Tuesday))
	assert.False(t, Eligible(tuesday, expiry, time.Monday))
}

func TestEligibleWithin(t *testing.T) {
	assert.True(t, EligibleWithin(tuesday, dates.AddDays(tuesday, -400), 7), "any past expiry")
	assert.True(t, EligibleWithin(tuesday, dates.AddDays(tuesday, 7), 7))
	assert.False(t, EligibleWithin(tuesday, dates.AddDays(tuesday, 8), 7))
	assert.True(t, EligibleWithin(tuesday, dates.AddDays(tuesday, 20), 30))
	assert.True(t, EligibleWithin(tuesday, dates.AddDays(tuesday, 0), 0))
	assert.False(t, EligibleWithin(tuesday, dates.AddDays(tuesday, 8), -1), "negative falls back to the default")
}

func TestMessageAndSubject(t *testing.T) {
	expiry := dates.Date(2024, time.March, 9)
	assert.Equal(t, "Your warranty for 'Fridge' expires on March 09, 2024.", Message("Fridge", expiry, false))
	assert.Equal(t, "Your warranty for 'Fridge' has expired on March 09, 2024.", Message("Fridge", expiry, true))
	assert.Equal(t, "Warranty reminder: Fridge", Subject("Fridge", false))
	assert.Equal(t, "Warranty expired: Fridge", Subject("Fridge", true))

	assert.False(t, Expired(expiry, expiry), "expiring today uses the upcoming wording")
	assert.True(t, Expired(dates.AddDays(expiry, 1), expiry))
}
