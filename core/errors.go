package core

import (
	"errors"
	"fmt"
)

var (
	ErrSignerUnavailable      = errors.New("no connected wallet account")
	ErrInvalidSignatureLength = errors.New("invalid signature length")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrMalformedToken         = errors.New("malformed token")
	ErrExpired                = errors.New("credential has expired")
	ErrRevoked                = errors.New("credential has been revoked")
	ErrMissingFields          = errors.New("missing required fields")
	ErrNotFound               = errors.New("not found")
	ErrStoreUnavailable       = errors.New("credential store unavailable")
	ErrVerificationFailed     = errors.New("verification failed")
	ErrInvalidDID             = errors.New("invalid did")
	ErrAddressMismatch        = errors.New("address mismatch")
	ErrUnsupportedKind        = errors.New("unsupported credential kind")
	ErrNotOwner               = errors.New("credential belongs to another address")
)

// RevokedError is returned when a stored record carries a tombstone.
type RevokedError struct {
	Reason string
}

func (e *RevokedError) Error() string {
	if e.Reason == "" {
		return ErrRevoked.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRevoked, e.Reason)
}

func (e *RevokedError) Unwrap() error { return ErrRevoked }
