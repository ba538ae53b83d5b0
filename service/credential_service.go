package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/ports"
	"github.com/rs/zerolog"
)

// CredentialService handles credential registration, revocation and status
type CredentialService struct {
	verifier *Verifier
	store    ports.CredentialStore
	eventPub ports.EventPublisher
	logger   zerolog.Logger
}

// NewCredentialService creates a new credential service
func NewCredentialService(
	verifier *Verifier,
	store ports.CredentialStore,
	eventPub ports.EventPublisher,
	logger zerolog.Logger,
) *CredentialService {
	return &CredentialService{
		verifier: verifier,
		store:    store,
		eventPub: eventPub,
		logger:   logger,
	}
}

// Verifier returns the verifier the service registers credentials with.
func (s *CredentialService) Verifier() *Verifier {
	return s.verifier
}

// Register verifies a credential and persists it. Registering a credential
// that is already stored returns the existing record.
func (s *CredentialService) Register(ctx context.Context, cred core.Credential) (*core.StoredCredential, error) {
	verification, err := s.verifier.VerifyCredential(ctx, cred)
	if err != nil {
		return nil, err
	}

	if verification.DocumentID != "" {
		existing, err := s.store.Get(ctx, core.CredentialFilter{DocumentID: verification.DocumentID})
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
	}

	claims := verification.Claims
	record := &core.StoredCredential{
		CredentialID: claims.ID,
		Kind:         cred.Kind,
		JWT:          cred.JWT,
		EIP712:       cred.EIP712,
		Issuer:       claims.Issuer,
		Subject:      claims.Subject,
		Audience:     claims.Audience,
		Address:      claims.Address,
		ChainID:      claims.ChainID,
		IssuedAt:     claims.IssuedAt,
		ExpiresAt:    claims.ExpiresAt,
	}

	docID, err := s.store.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	record.DocumentID = docID

	if err := s.eventPub.PublishCredentialRegistered(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("credentialId", record.CredentialID).Msg("failed to publish credential registered event")
	}

	s.logger.Info().
		Str("documentId", docID).
		Str("credentialId", record.CredentialID).
		Str("address", record.Address).
		Msg("credential registered")

	return record, nil
}

// Lookup returns the record addressed by credential or document id.
func (s *CredentialService) Lookup(ctx context.Context, id string) (*core.StoredCredential, error) {
	record, err := s.store.Get(ctx, core.CredentialFilter{CredentialID: id})
	if errors.Is(err, core.ErrNotFound) {
		record, err = s.store.Get(ctx, core.CredentialFilter{DocumentID: id})
	}
	return record, err
}

// RevokeAs revokes a credential on behalf of holder, which must be the
// address the credential was issued to.
func (s *CredentialService) RevokeAs(ctx context.Context, holder, id, reason string) (*core.StoredCredential, error) {
	record, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(record.Address, holder) {
		return nil, core.ErrNotOwner
	}
	return s.Revoke(ctx, id, reason)
}

// Revoke tombstones the credential addressed by document or credential id.
// Unknown and already revoked credentials both report core.ErrNotFound.
func (s *CredentialService) Revoke(ctx context.Context, id, reason string) (*core.StoredCredential, error) {
	revoked, err := s.store.Revoke(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, core.ErrNotFound
	}

	record, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load revoked credential: %w", err)
	}

	if err := s.eventPub.PublishCredentialRevoked(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("credentialId", record.CredentialID).Msg("failed to publish credential revoked event")
	}

	s.logger.Info().
		Str("credentialId", record.CredentialID).
		Str("reason", reason).
		Msg("credential revoked")

	return record, nil
}

// Status returns the newest stored credential for an address or DID.
func (s *CredentialService) Status(ctx context.Context, addressOrDID string) (*core.StoredCredential, error) {
	address, err := core.ResolveAddress(addressOrDID)
	if err != nil {
		return nil, err
	}

	filter := core.CredentialFilter{Address: address.Hex()}
	if _, chainID, err := core.ParseDID(addressOrDID); err == nil {
		filter.ChainID = chainID
	}

	return s.store.Get(ctx, filter)
}
