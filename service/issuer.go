package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/renown/adapters/tokenizer"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/internal/eth"
	"github.com/layer-3/renown/ports"
)

// DefaultCredentialTTL is the lifetime of an issued credential when the
// caller does not override it.
const DefaultCredentialTTL = 7 * 24 * time.Hour

// IssueOptions override the defaults of a single issuance.
type IssueOptions struct {
	// Audience defaults to the issuer's configured audience.
	Audience string
	// ConnectID scopes the credential to a target identity, e.g. a CLI's DID.
	ConnectID string
	// TTL defaults to the issuer's configured lifetime.
	TTL time.Duration
}

// Issuer mints signed credentials for a wallet. It does not persist them.
type Issuer struct {
	codec    *tokenizer.Codec
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

func WithAudience(audience string) IssuerOption {
	return func(i *Issuer) { i.audience = audience }
}

func WithCredentialTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) { i.ttl = ttl }
}

func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an issuer producing tokens through codec.
func NewIssuer(codec *tokenizer.Codec, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		codec:    codec,
		audience: core.DefaultAudience,
		ttl:      DefaultCredentialTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue derives the signer's DID, builds the claim set, signs the encoded
// header and payload, and returns the compact token with its claims.
func (i *Issuer) Issue(ctx context.Context, signer ports.Signer, chainID int64, opts IssueOptions) (string, core.Claims, error) {
	address, err := signer.Address()
	if err != nil {
		return "", core.Claims{}, err
	}

	now := i.now()
	claims := core.Claims{
		Issuer:    core.DeriveDID(address.Hex(), chainID),
		Subject:   opts.ConnectID,
		Audience:  i.audienceFor(opts),
		IssuedAt:  now.Unix(),
		ID:        newCredentialID(),
		Address:   address.Hex(),
		ChainID:   chainID,
		ConnectID: opts.ConnectID,
	}

	signingInput, claims, err := i.codec.Encode(claims, i.ttlFor(opts))
	if err != nil {
		return "", core.Claims{}, err
	}

	signature, err := signer.Sign(ctx, []byte(signingInput))
	if err != nil {
		return "", core.Claims{}, fmt.Errorf("failed to sign credential: %w", err)
	}

	return i.codec.Compose(signingInput, signature), claims, nil
}

// IssueEIP712 mints the typed-data form of a credential.
func (i *Issuer) IssueEIP712(ctx context.Context, signer ports.Signer, chainID int64, opts IssueOptions) (*core.EIP712Credential, error) {
	address, err := signer.Address()
	if err != nil {
		return nil, err
	}

	// RFC3339 dates carry whole seconds only.
	now := i.now().Truncate(time.Second)
	did := core.DeriveDID(address.Hex(), chainID)

	vc := tokenizer.NewVerifiableCredential(newCredentialID(), did, address, opts.ConnectID, i.audienceFor(opts), now, now.Add(i.ttlFor(opts)))
	domain := core.EIP712Domain{Version: tokenizer.EIP712DomainVersion, ChainID: chainID}

	signature, err := signer.SignTypedData(ctx, eth.CredentialTypedData(vc, domain))
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	return &core.EIP712Credential{
		Credential: vc,
		Proof: core.EIP712Proof{
			Type:        tokenizer.EIP712ProofType,
			Signature:   signature,
			Domain:      domain,
			PrimaryType: eth.CredentialPrimaryType,
		},
	}, nil
}

func (i *Issuer) audienceFor(opts IssueOptions) string {
	if opts.Audience != "" {
		return opts.Audience
	}
	return i.audience
}

func (i *Issuer) ttlFor(opts IssueOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	return i.ttl
}

func newCredentialID() string {
	return "urn:uuid:" + uuid.NewString()
}
