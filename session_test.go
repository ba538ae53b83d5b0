package renown

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/layer-3/renown/adapters/signer"
	"github.com/layer-3/renown/adapters/tokenizer"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/ports"
	"github.com/layer-3/renown/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records calls and returns canned errors.
type fakeClient struct {
	mu          sync.Mutex
	registered  []string
	revoked     []string
	verified    []string
	verifyErr   error
	registerErr error
	revokeErr   error
}

func (f *fakeClient) RegisterCredential(_ context.Context, cred core.Credential) (*Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, cred.JWT)
	return &Registration{DocumentID: "doc-1"}, nil
}

func (f *fakeClient) RevokeCredential(_ context.Context, _, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	return f.revokeErr
}

func (f *fakeClient) Verify(_ context.Context, token, _ string) (*VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, token)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &VerifyResult{Valid: true}, nil
}

func (f *fakeClient) Status(context.Context, string) (*CredentialStatus, error) { return nil, nil }

func (f *fakeClient) Me(context.Context, string) (*Identity, error) { return nil, nil }

func (f *fakeClient) OpenSession(context.Context, string) (*SessionState, error) { return nil, nil }

func (f *fakeClient) PollSession(context.Context, string) (*SessionState, error) { return nil, nil }

func (f *fakeClient) CompleteSession(context.Context, string, core.SessionCompletion) error {
	return nil
}

func (f *fakeClient) CancelSession(context.Context, string) error { return nil }

// switchSigner delegates to a replaceable signer, like a wallet whose
// account can change.
type switchSigner struct {
	mu      sync.Mutex
	current ports.Signer
	gate    chan struct{}
}

func (s *switchSigner) set(next ports.Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
}

func (s *switchSigner) get() ports.Signer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *switchSigner) Address() (common.Address, error) { return s.get().Address() }

func (s *switchSigner) Sign(ctx context.Context, payload []byte) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.get().Sign(ctx, payload)
}

func (s *switchSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error) {
	return s.get().SignTypedData(ctx, data)
}

func newWalletSigner(t *testing.T) *signer.Adapter {
	t.Helper()
	wallet, err := signer.GenerateKeyWallet()
	require.NoError(t, err)
	return signer.NewAdapter(wallet)
}

type controllerEnv struct {
	now    time.Time
	signer *switchSigner
	client *fakeClient
	cache  *MemoryTokenCache
	ctrl   *Controller
}

func newControllerEnv(t *testing.T) *controllerEnv {
	t.Helper()
	env := &controllerEnv{
		now:    time.Unix(1_700_000_000, 0),
		signer: &switchSigner{current: newWalletSigner(t)},
		client: &fakeClient{},
		cache:  NewMemoryTokenCache(),
	}
	clock := func() time.Time { return env.now }
	issuer := service.NewIssuer(
		tokenizer.NewCodec(tokenizer.WithClock(clock)),
		service.WithIssuerClock(clock),
		service.WithCredentialTTL(time.Hour),
	)
	env.ctrl = NewController(issuer, env.signer,
		WithClient(env.client),
		WithCache(env.cache),
		WithChainID(137),
		WithClock(clock),
	)
	return env
}

func TestControllerLogin(t *testing.T) {
	ctx := context.Background()
	env := newControllerEnv(t)

	assert.Equal(t, StateAnonymous, env.ctrl.Snapshot().State)
	_, err := env.ctrl.Token()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	token, err := env.ctrl.Login(ctx, service.IssueOptions{ConnectID: "did:key:cli"})
	require.NoError(t, err)
	assert.Equal(t, int64(137), token.Claims.ChainID)
	assert.Equal(t, "doc-1", token.DocumentID)
	assert.Equal(t, token.Claims.ID, token.CredentialID)
	assert.Equal(t, env.now.Add(time.Hour).Unix(), token.ExpiresAt().Unix())

	snap := env.ctrl.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, token.Token, snap.Token.Token)
	assert.Equal(t, []string{token.Token}, env.client.registered)

	cached, err := env.cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, token.Token, cached.Token)
	assert.Equal(t, token.Claims.Issuer, cached.DID())
}

func TestControllerLoginRegisterFailure(t *testing.T) {
	env := newControllerEnv(t)
	env.client.registerErr = errors.New("offline")

	token, err := env.ctrl.Login(context.Background(), service.IssueOptions{})
	require.NoError(t, err)
	assert.Empty(t, token.DocumentID)
	assert.Equal(t, StateAuthenticated, env.ctrl.Snapshot().State)
}

func TestControllerLoginFailure(t *testing.T) {
	env := newControllerEnv(t)
	_, err := env.ctrl.Login(context.Background(), service.IssueOptions{})
	require.NoError(t, err)

	env.signer.set(signer.NewAdapter(nil))
	_, err = env.ctrl.Login(context.Background(), service.IssueOptions{})
	assert.ErrorIs(t, err, core.ErrSignerUnavailable)

	snap := env.ctrl.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Nil(t, snap.Token)
	assert.ErrorIs(t, snap.Err, core.ErrSignerUnavailable)
}

func TestControllerLoginInProgress(t *testing.T) {
	env := newControllerEnv(t)
	env.signer.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := env.ctrl.Login(context.Background(), service.IssueOptions{})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return env.ctrl.Snapshot().State == StateAuthenticating
	}, time.Second, time.Millisecond)

	_, err := env.ctrl.Login(context.Background(), service.IssueOptions{})
	assert.ErrorIs(t, err, ErrLoginInProgress)

	close(env.signer.gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateAuthenticated, env.ctrl.Snapshot().State)
}

func TestControllerLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes and clears", func(t *testing.T) {
		env := newControllerEnv(t)
		token, err := env.ctrl.Login(ctx, service.IssueOptions{})
		require.NoError(t, err)

		require.NoError(t, env.ctrl.Logout(ctx))
		assert.Equal(t, []string{token.CredentialID}, env.client.revoked)
		assert.Equal(t, StateAnonymous, env.ctrl.Snapshot().State)

		cached, err := env.cache.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, cached)

		// Logging out while anonymous only clears.
		require.NoError(t, env.ctrl.Logout(ctx))
		assert.Len(t, env.client.revoked, 1)
	})

	t.Run("revoke failure", func(t *testing.T) {
		env := newControllerEnv(t)
		env.client.revokeErr = &APIError{StatusCode: http.StatusServiceUnavailable, Message: "down"}
		_, err := env.ctrl.Login(ctx, service.IssueOptions{})
		require.NoError(t, err)

		require.NoError(t, env.ctrl.Logout(ctx))
		assert.Len(t, env.client.revoked, 1)
		assert.Equal(t, StateAnonymous, env.ctrl.Snapshot().State)

		cached, err := env.cache.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, cached)
	})

	t.Run("credential id only", func(t *testing.T) {
		env := newControllerEnv(t)
		require.NoError(t, env.cache.Save(ctx, &CachedToken{
			CredentialID: "urn:uuid:1",
			Claims:       core.Claims{Address: "0xabc", ExpiresAt: env.now.Add(time.Hour).Unix()},
		}))
		_, err := env.ctrl.Restore(ctx)
		require.NoError(t, err)

		require.NoError(t, env.ctrl.Logout(ctx))
		assert.Empty(t, env.client.revoked)
		assert.Equal(t, StateAnonymous, env.ctrl.Snapshot().State)
	})

	t.Run("during login", func(t *testing.T) {
		env := newControllerEnv(t)
		env.signer.gate = make(chan struct{})

		done := make(chan error, 1)
		go func() {
			_, err := env.ctrl.Login(ctx, service.IssueOptions{})
			done <- err
		}()
		require.Eventually(t, func() bool {
			return env.ctrl.Snapshot().State == StateAuthenticating
		}, time.Second, time.Millisecond)

		require.NoError(t, env.ctrl.Logout(ctx))
		close(env.signer.gate)
		assert.ErrorIs(t, <-done, ErrLoggedOut)

		snap := env.ctrl.Snapshot()
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Nil(t, snap.Token)
		cached, err := env.cache.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, cached)
		assert.Empty(t, env.client.registered)
	})
}

func TestControllerRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cache", func(t *testing.T) {
		env := newControllerEnv(t)
		snap, err := env.ctrl.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Empty(t, env.client.verified)
	})

	t.Run("valid", func(t *testing.T) {
		env := newControllerEnv(t)
		token := seedCache(t, env)

		snap, err := env.ctrl.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, snap.State)
		assert.Equal(t, token.Token, snap.Token.Token)
		assert.Equal(t, []string{token.Token}, env.client.verified)
	})

	t.Run("expired skips the server", func(t *testing.T) {
		env := newControllerEnv(t)
		seedCache(t, env)
		env.now = env.now.Add(2 * time.Hour)

		snap, err := env.ctrl.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Empty(t, env.client.verified)

		cached, _ := env.cache.Load(ctx)
		assert.Nil(t, cached)
	})

	t.Run("rejected", func(t *testing.T) {
		env := newControllerEnv(t)
		seedCache(t, env)
		env.client.verifyErr = &APIError{StatusCode: http.StatusUnauthorized, Message: "credential has been revoked"}

		snap, err := env.ctrl.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAnonymous, snap.State)
	})

	t.Run("server unreachable", func(t *testing.T) {
		env := newControllerEnv(t)
		seedCache(t, env)
		env.client.verifyErr = errors.New("connection refused")

		snap, err := env.ctrl.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticated, snap.State)
	})

	t.Run("corrupt cache", func(t *testing.T) {
		env := newControllerEnv(t)
		path := filepath.Join(t.TempDir(), "credential.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		ctrl := NewController(nil, env.signer, WithClient(env.client), WithCache(NewFileTokenCache(path)))

		snap, err := ctrl.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Empty(t, env.client.verified)

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
		require.NoError(t, ctrl.Logout(ctx))
	})

	t.Run("credential id only", func(t *testing.T) {
		env := newControllerEnv(t)
		token := seedCache(t, env)
		token.Token = ""
		require.NoError(t, env.cache.Save(ctx, token))

		_, err := env.ctrl.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{token.CredentialID}, env.client.verified)
	})
}

// seedCache logs in on a controller without a client so the cache holds a
// real token.
func seedCache(t *testing.T, env *controllerEnv) *CachedToken {
	t.Helper()
	other := NewController(env.ctrl.issuer, env.signer, WithCache(env.cache), WithChainID(137), WithClock(env.ctrl.now))
	token, err := other.Login(context.Background(), service.IssueOptions{})
	require.NoError(t, err)
	return token
}

func TestControllerReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		env := newControllerEnv(t)
		require.NoError(t, env.ctrl.Reconcile(ctx))
		assert.Equal(t, StateAnonymous, env.ctrl.Snapshot().State)
	})

	t.Run("unchanged", func(t *testing.T) {
		env := newControllerEnv(t)
		first, err := env.ctrl.Login(ctx, service.IssueOptions{})
		require.NoError(t, err)

		require.NoError(t, env.ctrl.Reconcile(ctx))
		current, err := env.ctrl.Token()
		require.NoError(t, err)
		assert.Equal(t, first.Token, current.Token)
	})

	t.Run("account changed", func(t *testing.T) {
		env := newControllerEnv(t)
		first, err := env.ctrl.Login(ctx, service.IssueOptions{Audience: "dashboard", ConnectID: "did:key:cli"})
		require.NoError(t, err)

		next := newWalletSigner(t)
		env.signer.set(next)
		require.NoError(t, env.ctrl.Reconcile(ctx))

		current, err := env.ctrl.Token()
		require.NoError(t, err)
		address, _ := next.Address()
		assert.Equal(t, address.Hex(), current.Claims.Address)
		assert.NotEqual(t, first.Claims.Address, current.Claims.Address)
		assert.Equal(t, "dashboard", current.Claims.Audience)
		assert.Equal(t, "did:key:cli", current.Claims.ConnectID)
	})

	t.Run("expired", func(t *testing.T) {
		env := newControllerEnv(t)
		first, err := env.ctrl.Login(ctx, service.IssueOptions{})
		require.NoError(t, err)

		env.now = env.now.Add(time.Hour)
		require.NoError(t, env.ctrl.Reconcile(ctx))

		current, err := env.ctrl.Token()
		require.NoError(t, err)
		assert.NotEqual(t, first.CredentialID, current.CredentialID)
		assert.Greater(t, current.Claims.ExpiresAt, first.Claims.ExpiresAt)
	})

	t.Run("wallet disconnected", func(t *testing.T) {
		env := newControllerEnv(t)
		first, err := env.ctrl.Login(ctx, service.IssueOptions{})
		require.NoError(t, err)

		env.signer.set(signer.NewAdapter(nil))
		require.NoError(t, env.ctrl.Reconcile(ctx))

		current, err := env.ctrl.Token()
		require.NoError(t, err)
		assert.Equal(t, first.Token, current.Token)
	})
}

func TestControllerRun(t *testing.T) {
	env := newControllerEnv(t)
	_, err := env.ctrl.Login(context.Background(), service.IssueOptions{})
	require.NoError(t, err)
	env.signer.set(newWalletSigner(t))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		env.ctrl.Run(ctx, 5*time.Millisecond)
		close(stopped)
	}()

	want, _ := env.signer.Address()
	assert.Eventually(t, func() bool {
		token, err := env.ctrl.Token()
		return err == nil && token.Claims.Address == want.Hex()
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-stopped
}
