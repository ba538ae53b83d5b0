package renown

import (
	"time"

	"github.com/layer-3/renown/core"
)

// CachedToken is the credential held by a client session
type CachedToken struct {
	Token        string      `json:"token"`
	Claims       core.Claims `json:"claims"`
	CredentialID string      `json:"credentialId"`
	DocumentID   string      `json:"documentId,omitempty"`
}

// Expired reports whether the token is no longer valid at now
func (t *CachedToken) Expired(now time.Time) bool {
	return t.Claims.Expired(now)
}

// ExpiresAt returns the expiry as a time
func (t *CachedToken) ExpiresAt() time.Time {
	return time.Unix(t.Claims.ExpiresAt, 0)
}

// DID returns the issuer identity of the token
func (t *CachedToken) DID() string {
	return t.Claims.Issuer
}
