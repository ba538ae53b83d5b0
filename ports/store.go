package ports

import (
	"context"

	"github.com/layer-3/renown/core"
)

// CredentialStore persists issued credentials. Records are never deleted;
// revocation sets a tombstone.
type CredentialStore interface {
	// Create stores a record and returns its document id.
	Create(ctx context.Context, record *core.StoredCredential) (string, error)

	// Get returns the newest record matching the filter, or core.ErrNotFound.
	Get(ctx context.Context, filter core.CredentialFilter) (*core.StoredCredential, error)

	// List returns every matching record, newest first.
	List(ctx context.Context, filter core.CredentialFilter) ([]*core.StoredCredential, error)

	// Revoke tombstones the record addressed by document or credential id.
	// It reports false when the record was already revoked and returns
	// core.ErrNotFound when no record exists.
	Revoke(ctx context.Context, id, reason string) (bool, error)
}

// SessionStore holds short-lived rendezvous sessions keyed by session id.
// Unknown and expired ids are reported as nil without error.
type SessionStore interface {
	Create(ctx context.Context, sessionID string) (*core.ConsoleSession, bool, error)
	Get(ctx context.Context, sessionID string) (*core.ConsoleSession, error)
	Complete(ctx context.Context, sessionID string, data core.SessionCompletion) (*core.ConsoleSession, error)
	Consume(ctx context.Context, sessionID string) (*core.ConsoleSession, error)
	Delete(ctx context.Context, sessionID string) error
}
