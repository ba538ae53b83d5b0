package ports

import (
	"context"

	"github.com/layer-3/renown/core"
)

// EventPublisher notifies other instances about credential and session changes.
type EventPublisher interface {
	PublishCredentialRegistered(ctx context.Context, record *core.StoredCredential) error
	PublishCredentialRevoked(ctx context.Context, record *core.StoredCredential) error
	PublishSessionReady(ctx context.Context, session *core.ConsoleSession) error
}
