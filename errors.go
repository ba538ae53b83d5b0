package renown

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/layer-3/renown/core"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a credential
	// and the controller holds none
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrLoginInProgress is returned when login is called while another
	// login is still waiting on the wallet
	ErrLoginInProgress = errors.New("login already in progress")

	// ErrLoggedOut is returned by a login that was overtaken by a logout
	ErrLoggedOut = errors.New("logged out while login was in progress")

	// ErrSessionTimeout is returned when a console session is not approved
	// before it expires
	ErrSessionTimeout = errors.New("console session was not approved in time")

	// ErrCorruptCache is returned when a cached token cannot be decoded
	ErrCorruptCache = errors.New("token cache is corrupt")
)

// APIError is a non-success response from the renown server.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("renown API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unwrap maps the response onto the core error taxonomy so callers can use
// errors.Is against core sentinels.
func (e *APIError) Unwrap() error {
	msg := strings.ToLower(e.Message)
	switch {
	case e.StatusCode == http.StatusNotFound:
		return core.ErrNotFound
	case e.StatusCode == http.StatusForbidden:
		return core.ErrNotOwner
	case e.StatusCode == http.StatusServiceUnavailable:
		return core.ErrStoreUnavailable
	case strings.Contains(msg, "revoked"):
		return core.ErrRevoked
	case strings.Contains(msg, "expired"):
		return core.ErrExpired
	case strings.Contains(msg, "missing required fields"):
		return core.ErrMissingFields
	case e.StatusCode == http.StatusBadRequest:
		return core.ErrMalformedToken
	default:
		return core.ErrVerificationFailed
	}
}
