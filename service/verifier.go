package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/renown/adapters/tokenizer"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/ports"
)

// Verifier checks credentials in order: structure, expiry, revocation,
// signature. The first failing check decides the error.
type Verifier struct {
	codec *tokenizer.Codec
	store ports.CredentialStore
	now   func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier. A nil store skips the revocation check.
func NewVerifier(codec *tokenizer.Codec, store ports.CredentialStore, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		codec: codec,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a compact JWT credential.
func (v *Verifier) Verify(ctx context.Context, token string) (*core.Verification, error) {
	return v.VerifyCredential(ctx, core.JWTCredential(token))
}

// VerifyCredential checks a credential of any kind.
func (v *Verifier) VerifyCredential(ctx context.Context, cred core.Credential) (*core.Verification, error) {
	var (
		claims  core.Claims
		decoded *tokenizer.Decoded
		err     error
	)
	switch cred.Kind {
	case core.KindJWT:
		decoded, err = v.codec.Decode(cred.JWT)
		if err == nil {
			claims = decoded.Claims
		}
	default:
		claims, err = v.codec.Claims(cred)
	}
	if err != nil {
		return nil, err
	}

	signer, err := issuerAddress(claims)
	if err != nil {
		return nil, err
	}

	if claims.Expired(v.now()) {
		return nil, core.ErrExpired
	}

	record, err := v.lookup(ctx, claims)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Revoked {
		return nil, &core.RevokedError{Reason: record.RevocationReason}
	}

	switch cred.Kind {
	case core.KindJWT:
		err = v.codec.VerifySignature(decoded, signer)
	case core.KindEIP712:
		err = tokenizer.VerifyEIP712(cred.EIP712, signer)
	}
	if err != nil {
		return nil, err
	}

	verification := &core.Verification{
		Kind:         cred.Kind,
		Claims:       claims,
		CredentialID: claims.ID,
	}
	if record != nil {
		verification.DocumentID = record.DocumentID
		verification.CredentialID = record.CredentialID
	}
	return verification, nil
}

// VerifyByID checks a registered credential by its credential id. A non-empty
// address must own the credential; otherwise the identity is unknown.
func (v *Verifier) VerifyByID(ctx context.Context, credentialID, address string) (*core.Verification, error) {
	if v.store == nil {
		return nil, fmt.Errorf("%w: no credential store", core.ErrVerificationFailed)
	}

	record, err := v.store.Get(ctx, core.CredentialFilter{CredentialID: credentialID})
	if errors.Is(err, core.ErrNotFound) {
		record, err = v.store.Get(ctx, core.CredentialFilter{DocumentID: credentialID})
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrVerificationFailed, err)
	}
	if address != "" && !strings.EqualFold(address, record.Address) {
		return nil, core.ErrNotFound
	}

	claims := record.Claims()
	if claims.Expired(v.now()) {
		return nil, core.ErrExpired
	}
	if record.Revoked {
		return nil, &core.RevokedError{Reason: record.RevocationReason}
	}

	return &core.Verification{
		Kind:         record.Kind,
		Claims:       claims,
		CredentialID: record.CredentialID,
		DocumentID:   record.DocumentID,
	}, nil
}

// lookup finds the stored record for claims by credential id, falling back
// to the signer identity for credentials without one. A missing record is
// not an error.
func (v *Verifier) lookup(ctx context.Context, claims core.Claims) (*core.StoredCredential, error) {
	if v.store == nil {
		return nil, nil
	}

	filter := core.CredentialFilter{CredentialID: claims.ID}
	if claims.ID == "" {
		filter = core.CredentialFilter{
			Address: claims.Address,
			ChainID: claims.ChainID,
			Subject: claims.Subject,
		}
	}

	record, err := v.store.Get(ctx, filter)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrVerificationFailed, err)
	}
	return record, nil
}

// issuerAddress returns the account named by the iss DID, which must agree
// with the plain address claim.
func issuerAddress(claims core.Claims) (common.Address, error) {
	if claims.Issuer == "" || claims.Address == "" {
		return common.Address{}, fmt.Errorf("%w: missing iss or address claim", core.ErrMalformedToken)
	}
	signer, chainID, err := core.ParseDID(claims.Issuer)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	}
	if !strings.EqualFold(signer.Hex(), claims.Address) || chainID != claims.ChainID {
		return common.Address{}, fmt.Errorf("%w: %w", core.ErrMalformedToken, core.ErrAddressMismatch)
	}
	return signer, nil
}
