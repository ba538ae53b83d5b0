package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/renown/adapters/signer"
	"github.com/layer-3/renown/adapters/store"
	"github.com/layer-3/renown/adapters/tokenizer"
	"github.com/layer-3/renown/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu         sync.Mutex
	registered []string
	revoked    []string
	ready      []string
}

func (p *recordingPublisher) PublishCredentialRegistered(_ context.Context, r *core.StoredCredential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, r.CredentialID)
	return nil
}

func (p *recordingPublisher) PublishCredentialRevoked(_ context.Context, r *core.StoredCredential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, r.CredentialID)
	return nil
}

func (p *recordingPublisher) PublishSessionReady(_ context.Context, s *core.ConsoleSession) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = append(p.ready, s.SessionID)
	return nil
}

type fixture struct {
	now         time.Time
	codec       *tokenizer.Codec
	store       *store.MemoryCredentialStore
	events      *recordingPublisher
	issuer      *Issuer
	verifier    *Verifier
	credentials *CredentialService
	signer      *signer.Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Unix(1_700_000_000, 0)}
	clock := func() time.Time { return f.now }

	f.codec = tokenizer.NewCodec(tokenizer.WithClock(clock))
	f.store = store.NewMemoryCredentialStore()
	f.events = &recordingPublisher{}
	f.issuer = NewIssuer(f.codec, WithIssuerClock(clock), WithCredentialTTL(time.Hour))
	f.verifier = NewVerifier(f.codec, f.store, WithVerifierClock(clock))
	f.credentials = NewCredentialService(f.verifier, f.store, f.events, zerolog.Nop())

	wallet, err := signer.GenerateKeyWallet()
	require.NoError(t, err)
	f.signer = signer.NewAdapter(wallet)
	return f
}

func (f *fixture) issue(t *testing.T, opts IssueOptions) (string, core.Claims) {
	t.Helper()
	token, claims, err := f.issuer.Issue(context.Background(), f.signer, 1, opts)
	require.NoError(t, err)
	return token, claims
}

func (f *fixture) register(t *testing.T, token string) *core.StoredCredential {
	t.Helper()
	record, err := f.credentials.Register(context.Background(), core.JWTCredential(token))
	require.NoError(t, err)
	return record
}
