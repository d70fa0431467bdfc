package checkrequest

import "errors"

var (
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("checkrequest: amount must be positive")
	// ErrMissingAccount is returned when an item has no account id.
	ErrMissingAccount = errors.New("checkrequest: account id is required")
	// ErrEmptyRequest is returned when a summary is requested without items.
	ErrEmptyRequest = errors.New("checkrequest: no items")
	// ErrUnknownCurrency is returned for currencies other than local and foreign.
	ErrUnknownCurrency = errors.New("checkrequest: unknown currency")
	// ErrRateUnavailable is returned when a foreign summary is requested without a known rate.
	ErrRateUnavailable = errors.New("checkrequest: exchange rate unavailable")
)
