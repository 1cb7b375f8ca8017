package service

import (
	"errors"
	"fmt"
)

// Registration path.
var (
	ErrMissingSession        = errors.New("missing session id")
	ErrInvalidPayload        = errors.New("invalid registration payload")
	ErrLockTimeout           = errors.New("could not obtain document lock")
	ErrCapacityExceeded      = errors.New("requested tickets exceed the maximum")
	ErrDuplicateRegistration = errors.New("phone number or email already registered")

	// ErrLockLost is returned when the lock expired before a write. It
	// matches ErrLockTimeout so callers retry it the same way.
	ErrLockLost = fmt.Errorf("%w: lease lost before write", ErrLockTimeout)
)

// Check-in path.
var (
	ErrMalformedPayload = errors.New("malformed check-in payload")
	ErrNotFound         = errors.New("registration not found")
	ErrPayloadMismatch  = errors.New("check-in payload does not match registration")
	ErrLedgerMissing    = errors.New("registrations ledger not found")
	ErrAlreadyCheckedIn = errors.New("registration already checked in")
)

// PayloadError describes which registration field failed validation. It
// matches ErrInvalidPayload under errors.Is.
type PayloadError struct {
	Field  string
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *PayloadError) Unwrap() error {
	return ErrInvalidPayload
}
