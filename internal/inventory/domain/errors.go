package inventory

import "errors"

var (
	// ErrItemNotFound indicates a missing inventory row.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrValidation wraps field-level validation failures.
	ErrValidation = errors.New("inventory: validation failed")
)
