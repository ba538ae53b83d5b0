package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/ports"
)

const (
	TopicCredentialRegistered = "renown.credential.registered"
	TopicCredentialRevoked    = "renown.credential.revoked"
	TopicSessionReady         = "renown.session.ready"
)

// CredentialEvent is published when a credential is registered or revoked.
type CredentialEvent struct {
	DocumentID       string              `json:"documentId"`
	CredentialID     string              `json:"credentialId"`
	Kind             core.CredentialKind `json:"kind"`
	Address          string              `json:"address"`
	ChainID          int64               `json:"chainId"`
	Subject          string              `json:"subject,omitempty"`
	Revoked          bool                `json:"revoked"`
	RevocationReason string              `json:"revocationReason,omitempty"`
	OccurredAt       time.Time           `json:"occurredAt"`
}

// SessionEvent is published when a rendezvous session becomes ready.
type SessionEvent struct {
	SessionID    string    `json:"sessionId"`
	Address      string    `json:"address"`
	ChainID      int64     `json:"chainId"`
	DID          string    `json:"did"`
	CredentialID string    `json:"credentialId"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

func (p *WatermillPublisher) PublishCredentialRegistered(ctx context.Context, record *core.StoredCredential) error {
	return p.publish(ctx, TopicCredentialRegistered, p.credentialEvent(record))
}

func (p *WatermillPublisher) PublishCredentialRevoked(ctx context.Context, record *core.StoredCredential) error {
	return p.publish(ctx, TopicCredentialRevoked, p.credentialEvent(record))
}

func (p *WatermillPublisher) PublishSessionReady(ctx context.Context, session *core.ConsoleSession) error {
	return p.publish(ctx, TopicSessionReady, SessionEvent{
		SessionID:    session.SessionID,
		Address:      session.Address,
		ChainID:      session.ChainID,
		DID:          session.DID,
		CredentialID: session.CredentialID,
		OccurredAt:   p.now().UTC(),
	})
}

func (p *WatermillPublisher) credentialEvent(record *core.StoredCredential) CredentialEvent {
	return CredentialEvent{
		DocumentID:       record.DocumentID,
		CredentialID:     record.CredentialID,
		Kind:             record.Kind,
		Address:          record.Address,
		ChainID:          record.ChainID,
		Subject:          record.Subject,
		Revoked:          record.Revoked,
		RevocationReason: record.RevocationReason,
		OccurredAt:       p.now().UTC(),
	}
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishCredentialRegistered(context.Context, *core.StoredCredential) error {
	return nil
}

func (NopPublisher) PublishCredentialRevoked(context.Context, *core.StoredCredential) error {
	return nil
}

func (NopPublisher) PublishSessionReady(context.Context, *core.ConsoleSession) error {
	return nil
}
