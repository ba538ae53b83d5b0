package renown

import (
	"context"

	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/ports"
	"github.com/layer-3/renown/service"
	transport "github.com/layer-3/renown/transport/http"
)

type (
	VerifyResult     = transport.VerifyResponse
	CredentialStatus = transport.StatusResponse
	SessionState     = transport.SessionResponse
)

// Registration identifies a stored credential.
type Registration struct {
	DocumentID   string `json:"documentId"`
	CredentialID string `json:"credentialId"`
}

// Identity is the bearer identity reported by the server.
type Identity struct {
	Address   string `json:"address"`
	ChainID   int64  `json:"chainId"`
	DID       string `json:"did"`
	ConnectID string `json:"connectId"`
}

// Client represents the public interface of the renown server
type Client interface {
	// RegisterCredential stores an issued credential
	RegisterCredential(ctx context.Context, cred core.Credential) (*Registration, error)

	// RevokeCredential tombstones a credential by document or credential id.
	// token is a bearer credential held by the same address.
	RevokeCredential(ctx context.Context, token, id, reason string) error

	// Verify checks a JWT or credential id held by address
	Verify(ctx context.Context, token, address string) (*VerifyResult, error)

	// Status returns the newest credential for an address or DID
	Status(ctx context.Context, addressOrDID string) (*CredentialStatus, error)

	// Me resolves the identity of a bearer token
	Me(ctx context.Context, token string) (*Identity, error)

	// OpenSession creates a console session
	OpenSession(ctx context.Context, sessionID string) (*SessionState, error)

	// PollSession reads a console session, consuming it once ready
	PollSession(ctx context.Context, sessionID string) (*SessionState, error)

	// CompleteSession approves a console session
	CompleteSession(ctx context.Context, sessionID string, data core.SessionCompletion) error

	// CancelSession deletes a console session
	CancelSession(ctx context.Context, sessionID string) error
}

// TokenCache persists the active credential so a session survives restarts
type TokenCache interface {
	// Load returns the cached token, or nil when the cache is empty
	Load(ctx context.Context) (*CachedToken, error)

	// Save replaces the cached token
	Save(ctx context.Context, token *CachedToken) error

	// Clear empties the cache
	Clear(ctx context.Context) error
}

// CredentialIssuer mints signed credentials; *service.Issuer implements it
type CredentialIssuer interface {
	Issue(ctx context.Context, signer ports.Signer, chainID int64, opts service.IssueOptions) (string, core.Claims, error)
}
