package http

import (
	"errors"
	"net/http"

	"github.com/layer-3/renown/core"
)

// missingFieldsMessage is returned when a session completion lacks data.
const missingFieldsMessage = "Missing required fields: address, chainId, did, credentialId"

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrMissingFields),
		errors.Is(err, core.ErrMalformedToken),
		errors.Is(err, core.ErrInvalidDID),
		errors.Is(err, core.ErrUnsupportedKind):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrExpired),
		errors.Is(err, core.ErrRevoked),
		errors.Is(err, core.ErrInvalidSignature),
		errors.Is(err, core.ErrInvalidSignatureLength),
		errors.Is(err, core.ErrAddressMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
