package handler

import (
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/service"
)

// Wire codes are positional per operation: code_1 of registration and
// code_1 of check-in mean different things. Clients match on them, so they
// never change.
const (
	codeRegisterLockTimeout = "code_1"
	codeRegisterDuplicate   = "code_2"
	codeRegisterCapacity    = "code_3"
	codeRegisterInvalid     = "code_4"
	codeRegisterNoSession   = "code_5"

	codeLookupMalformed = "code_1"
	codeLookupNotFound  = "code_2"
	codeLookupMismatch  = "code_3"

	codeCheckInLedgerMissing = "code_1"
	codeCheckInLockTimeout   = "code_2"
	codeCheckInNotFound      = "code_3"
	codeCheckInAlreadyDone   = "code_4"
)

// wireError is the HTTP status and envelope code for a service error.
type wireError struct {
	status int
	code   string
}

var internalError = wireError{http.StatusInternalServerError, "internal error"}

type codeTable []struct {
	err  error
	wire wireError
}

func (t codeTable) lookup(err error) wireError {
	for _, e := range t {
		if errors.Is(err, e.err) {
			return e.wire
		}
	}
	return internalError
}

var registerCodes = codeTable{
	{service.ErrLockTimeout, wireError{http.StatusServiceUnavailable, codeRegisterLockTimeout}},
	{service.ErrDuplicateRegistration, wireError{http.StatusConflict, codeRegisterDuplicate}},
	{service.ErrCapacityExceeded, wireError{http.StatusConflict, codeRegisterCapacity}},
	{service.ErrInvalidPayload, wireError{http.StatusBadRequest, codeRegisterInvalid}},
	{service.ErrMissingSession, wireError{http.StatusBadRequest, codeRegisterNoSession}},
}

var lookupCodes = codeTable{
	{service.ErrMalformedPayload, wireError{http.StatusBadRequest, codeLookupMalformed}},
	{service.ErrNotFound, wireError{http.StatusNotFound, codeLookupNotFound}},
	{service.ErrPayloadMismatch, wireError{http.StatusConflict, codeLookupMismatch}},
}

var checkInCodes = codeTable{
	{service.ErrLedgerMissing, wireError{http.StatusNotFound, codeCheckInLedgerMissing}},
	{service.ErrLockTimeout, wireError{http.StatusServiceUnavailable, codeCheckInLockTimeout}},
	{service.ErrNotFound, wireError{http.StatusNotFound, codeCheckInNotFound}},
	{service.ErrAlreadyCheckedIn, wireError{http.StatusConflict, codeCheckInAlreadyDone}},
}

var mailCodes = codeTable{
	{service.ErrLockTimeout, wireError{http.StatusServiceUnavailable, "lock timeout"}},
	{service.ErrLedgerMissing, wireError{http.StatusNotFound, "ledger missing"}},
}
