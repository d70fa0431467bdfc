package expiry

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status classifies a device against its cutoff date.
type Status string

const (
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
	// StatusUnknown is used by callers for devices without a usable cutoff date.
	StatusUnknown Status = "unknown"
)

// Severity orders statuses from most to least critical.
func (s Status) Severity() int {
	switch s {
	case StatusExpired:
		return 0
	case StatusExpiringSoon:
		return 1
	case StatusActive:
		return 2
	default:
		return 3
	}
}

// Worse returns the more critical of two statuses.
func Worse(a, b Status) Status {
	if b.Severity() < a.Severity() {
		return b
	}
	return a
}

// DaysRemaining returns cutoff - today in calendar days, both normalised to midnight.
func DaysRemaining(cutoff, today time.Time) int {
	const secondsPerDay = 24 * 60 * 60
	return int((civilDay(cutoff).Unix() - civilDay(today).Unix()) / secondsPerDay)
}

// ClassifyStatus maps days remaining onto a status using an inclusive soon threshold.
func ClassifyStatus(days, threshold int) Status {
	switch {
	case days < 0:
		return StatusExpired
	case days <= threshold:
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

// EstimateBalance returns the prepaid value left on a device. Today is billable,
// so a device expiring today still holds one day of value.
func EstimateBalance(cutoff, today time.Time, dailyRate decimal.Decimal) decimal.Decimal {
	days := DaysRemaining(cutoff, today)
	if days < 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(days + 1)).Mul(dailyRate)
}

// Calculator bundles the daily rate and the location "today" is evaluated in.
type Calculator struct {
	dailyRate decimal.Decimal
	location  *time.Location
	now       func() time.Time
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithLocation sets the location used to resolve today's date.
func WithLocation(loc *time.Location) CalculatorOption {
	return func(c *Calculator) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) CalculatorOption {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCalculator constructs a calculator for the given daily rate.
func NewCalculator(dailyRate decimal.Decimal, opts ...CalculatorOption) (*Calculator, error) {
	if dailyRate.IsNegative() {
		return nil, ErrNegativeRate
	}
	c := &Calculator{
		dailyRate: dailyRate,
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DailyRate returns the configured rate.
func (c *Calculator) DailyRate() decimal.Decimal { return c.dailyRate }

// Today returns the current date at midnight in the calculator's location.
func (c *Calculator) Today() time.Time {
	return StartOfDay(c.now().In(c.location))
}

// Assessment is the derived state of a single device.
type Assessment struct {
	Known         bool            `json:"known"`
	DaysRemaining int             `json:"days_remaining"`
	Status        Status          `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
}

// Assess derives the state of a raw cutoff value. An empty or unparsable
// date yields an unknown assessment instead of an error.
func (c *Calculator) Assess(rawCutoff string, today time.Time, policy Policy) Assessment {
	cutoff, err := ParseCutoff(rawCutoff)
	if err != nil {
		return Assessment{Status: StatusUnknown, Balance: decimal.Zero}
	}
	days := DaysRemaining(cutoff, today)
	return Assessment{
		Known:         true,
		DaysRemaining: days,
		Status:        policy.Classify(days),
		Balance:       EstimateBalance(cutoff, today, c.dailyRate),
	}
}
