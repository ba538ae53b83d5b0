package service

import (
	"context"

	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/ports"
	"github.com/rs/zerolog"
)

// Rendezvous pairs a polling CLI with the browser that approves it.
type Rendezvous struct {
	store    ports.SessionStore
	eventPub ports.EventPublisher
	logger   zerolog.Logger
}

// NewRendezvous creates a rendezvous service over store.
func NewRendezvous(store ports.SessionStore, eventPub ports.EventPublisher, logger zerolog.Logger) *Rendezvous {
	return &Rendezvous{
		store:    store,
		eventPub: eventPub,
		logger:   logger,
	}
}

// Open creates the session if needed and reports whether it is new.
func (r *Rendezvous) Open(ctx context.Context, sessionID string) (*core.ConsoleSession, bool, error) {
	session, created, err := r.store.Create(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if created {
		r.logger.Debug().Str("sessionId", sessionID).Msg("console session opened")
	}
	return session, created, nil
}

// Poll returns the session, deleting it when ready. Unknown and expired
// sessions are reported as pending.
func (r *Rendezvous) Poll(ctx context.Context, sessionID string) (*core.ConsoleSession, error) {
	session, err := r.store.Consume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &core.ConsoleSession{SessionID: sessionID, Status: core.SessionPending}, nil
	}
	if session.Status == core.SessionReady {
		r.logger.Debug().Str("sessionId", sessionID).Msg("console session handed off")
	}
	return session, nil
}

// Complete marks the session ready with the approval payload.
func (r *Rendezvous) Complete(ctx context.Context, sessionID string, data core.SessionCompletion) (*core.ConsoleSession, error) {
	session, err := r.store.Complete(ctx, sessionID, data)
	if err != nil {
		return nil, err
	}

	if err := r.eventPub.PublishSessionReady(ctx, session); err != nil {
		r.logger.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish session ready event")
	}
	return session, nil
}

// Cancel deletes the session.
func (r *Rendezvous) Cancel(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, sessionID)
}
