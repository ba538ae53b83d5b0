package renown

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/renown/adapters/events"
	"github.com/layer-3/renown/adapters/signer"
	"github.com/layer-3/renown/adapters/store"
	"github.com/layer-3/renown/adapters/tokenizer"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/service"
	transport "github.com/layer-3/renown/transport/http"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	client *HTTPClient
	issuer *service.Issuer
	signer *signer.Adapter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sessions := store.NewMemorySessionStore()
	t.Cleanup(sessions.Stop)
	credentials := store.NewMemoryCredentialStore()

	codec := tokenizer.NewCodec()
	verifier := service.NewVerifier(codec, credentials)
	router := transport.SetupRouter(
		service.NewRendezvous(sessions, events.NopPublisher{}, zerolog.Nop()),
		service.NewCredentialService(verifier, credentials, events.NopPublisher{}, zerolog.Nop()),
		zerolog.Nop(),
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	wallet, err := signer.GenerateKeyWallet()
	require.NoError(t, err)

	return &testEnv{
		client: NewHTTPClient(server.URL+"/", WithRateLimit(1000)),
		issuer: service.NewIssuer(codec, service.WithCredentialTTL(time.Hour)),
		signer: signer.NewAdapter(wallet),
	}
}

func (e *testEnv) issue(t *testing.T) (string, core.Claims) {
	t.Helper()
	token, claims, err := e.issuer.Issue(context.Background(), e.signer, 1, service.IssueOptions{ConnectID: "did:key:cli"})
	require.NoError(t, err)
	return token, claims
}

func TestClientCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	token, claims := env.issue(t)

	reg, err := env.client.RegisterCredential(ctx, core.JWTCredential(token))
	require.NoError(t, err)
	assert.Equal(t, claims.ID, reg.CredentialID)
	assert.NotEmpty(t, reg.DocumentID)

	result, err := env.client.Verify(ctx, token, claims.Address)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, reg.DocumentID, result.Payload.DocumentID)

	identity, err := env.client.Me(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, claims.Issuer, identity.DID)
	assert.Equal(t, "did:key:cli", identity.ConnectID)

	status, err := env.client.Status(ctx, claims.Issuer)
	require.NoError(t, err)
	assert.Equal(t, "active", status.Status)

	bearer, _ := env.issue(t)
	err = env.client.RevokeCredential(ctx, "", claims.ID, "test")
	assert.ErrorIs(t, err, core.ErrVerificationFailed)
	require.NoError(t, env.client.RevokeCredential(ctx, bearer, claims.ID, "test"))

	_, err = env.client.Verify(ctx, claims.ID, claims.Address)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.ErrorIs(t, err, core.ErrRevoked)

	err = env.client.RevokeCredential(ctx, bearer, claims.ID, "again")
	assert.ErrorIs(t, err, core.ErrNotFound)

	other, err := signer.GenerateKeyWallet()
	require.NoError(t, err)
	foreign, _, err := env.issuer.Issue(ctx, signer.NewAdapter(other), 1, service.IssueOptions{})
	require.NoError(t, err)
	err = env.client.RevokeCredential(ctx, foreign, reg.DocumentID, "")
	assert.ErrorIs(t, err, core.ErrNotOwner)
}

func TestClientRegisterEIP712(t *testing.T) {
	env := newTestEnv(t)
	cred, err := env.issuer.IssueEIP712(context.Background(), env.signer, 1, service.IssueOptions{})
	require.NoError(t, err)

	reg, err := env.client.RegisterCredential(context.Background(), core.EIP712TypedCredential(cred))
	require.NoError(t, err)
	assert.Equal(t, cred.Credential.ID, reg.CredentialID)

	_, err = env.client.RegisterCredential(context.Background(), core.Credential{Kind: "x509"})
	assert.ErrorIs(t, err, core.ErrUnsupportedKind)
}

func TestClientSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	state, err := env.client.OpenSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionPending, state.Status)

	err = env.client.CompleteSession(ctx, "s1", core.SessionCompletion{Address: "0xabc"})
	assert.ErrorIs(t, err, core.ErrMissingFields)

	require.NoError(t, env.client.CompleteSession(ctx, "s1", core.SessionCompletion{
		Address:      "0xabc",
		ChainID:      1,
		DID:          "did:pkh:eip155:1:0xabc",
		CredentialID: "urn:uuid:x",
	}))

	state, err = env.client.PollSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionReady, state.Status)
	assert.Equal(t, "urn:uuid:x", state.CredentialID)

	state, err = env.client.PollSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionPending, state.Status)

	require.NoError(t, env.client.CancelSession(ctx, "s1"))
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPClient(url).Verify(context.Background(), "t", "a")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestAPIErrorUnwrap(t *testing.T) {
	for _, tc := range []struct {
		status  int
		message string
		want    error
	}{
		{http.StatusNotFound, "whatever", core.ErrNotFound},
		{http.StatusForbidden, "credential belongs to another address", core.ErrNotOwner},
		{http.StatusServiceUnavailable, "", core.ErrStoreUnavailable},
		{http.StatusUnauthorized, "credential has been revoked: x", core.ErrRevoked},
		{http.StatusUnauthorized, "credential has expired", core.ErrExpired},
		{http.StatusBadRequest, "Missing required fields: address", core.ErrMissingFields},
		{http.StatusBadRequest, "malformed token: bad", core.ErrMalformedToken},
		{http.StatusUnauthorized, "invalid signature", core.ErrVerificationFailed},
	} {
		err := &APIError{StatusCode: tc.status, Message: tc.message, Endpoint: "/verify"}
		assert.ErrorIs(t, err, tc.want, tc.message)
	}
}
