package accounts

import "errors"

var (
	// ErrAccountNotFound indicates a missing account row.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrDeviceNotFound indicates a device index or access card that does not resolve.
	ErrDeviceNotFound = errors.New("accounts: device not found")
	// ErrValidation wraps field-level validation failures.
	ErrValidation = errors.New("accounts: validation failed")
	// ErrPartialPropagation indicates that some sibling writes of a propagation failed.
	ErrPartialPropagation = errors.New("accounts: partial propagation")
	// ErrMalformedRecord indicates a stored row whose devices cannot be decoded.
	ErrMalformedRecord = errors.New("accounts: malformed record")
	// ErrPropagationNotFound indicates an unknown propagation id.
	ErrPropagationNotFound = errors.New("accounts: propagation not found")
)
