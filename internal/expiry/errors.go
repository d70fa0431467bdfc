package expiry

import "errors"

var (
	// ErrInvalidCutoff is returned when a cutoff date is empty or cannot be parsed.
	ErrInvalidCutoff = errors.New("expiry: invalid cutoff date")
	// ErrNegativeRate is returned when the daily rate is negative.
	ErrNegativeRate = errors.New("expiry: negative daily rate")
	// ErrNegativeThreshold is returned when a policy threshold is negative.
	ErrNegativeThreshold = errors.New("expiry: negative threshold")
)
