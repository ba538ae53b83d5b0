package renown

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/ports"
	"github.com/layer-3/renown/service"
	"github.com/rs/zerolog"
)

// State is the authentication state of a client session
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateError          State = "error"
)

// Snapshot is a consistent view of the controller
type Snapshot struct {
	State State
	Token *CachedToken
	Err   error
}

// Controller owns the client's credential: it issues, caches, refreshes and
// revokes it, and is the only writer of the session state.
type Controller struct {
	issuer  CredentialIssuer
	signer  ports.Signer
	client  Client
	cache   TokenCache
	chainID int64
	logger  zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
	token *CachedToken
	err   error
	// generation changes on every logout; a login that started under an
	// older generation drops its result.
	generation uint64
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithClient registers issued credentials with, and revokes them on, a server
func WithClient(client Client) ControllerOption {
	return func(c *Controller) { c.client = client }
}

// WithCache persists the active credential
func WithCache(cache TokenCache) ControllerOption {
	return func(c *Controller) { c.cache = cache }
}

func WithChainID(chainID int64) ControllerOption {
	return func(c *Controller) { c.chainID = chainID }
}

func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates an anonymous controller for signer
func NewController(issuer CredentialIssuer, signer ports.Signer, opts ...ControllerOption) *Controller {
	c := &Controller{
		issuer:  issuer,
		signer:  signer,
		cache:   NewMemoryTokenCache(),
		chainID: 1,
		logger:  zerolog.Nop(),
		now:     time.Now,
		state:   StateAnonymous,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{State: c.state, Err: c.err}
	if c.token != nil {
		cp := *c.token
		s.Token = &cp
	}
	return s
}

// Token returns the active credential or ErrNotAuthenticated
func (c *Controller) Token() (*CachedToken, error) {
	s := c.Snapshot()
	if s.State != StateAuthenticated || s.Token == nil {
		return nil, ErrNotAuthenticated
	}
	return s.Token, nil
}

// Login issues a new credential and makes it the active one. Registration
// and cache failures are logged; the credential stays usable locally.
func (c *Controller) Login(ctx context.Context, opts service.IssueOptions) (*CachedToken, error) {
	c.mu.Lock()
	if c.state == StateAuthenticating {
		c.mu.Unlock()
		return nil, ErrLoginInProgress
	}
	c.state = StateAuthenticating
	generation := c.generation
	c.mu.Unlock()

	token, claims, err := c.issuer.Issue(ctx, c.signer, c.chainID, opts)
	if err != nil {
		c.mu.Lock()
		if c.generation == generation {
			c.state = StateError
			c.token = nil
			c.err = err
		}
		c.mu.Unlock()
		return nil, err
	}
	if c.loggedOutSince(generation) {
		c.logger.Info().Str("credentialId", claims.ID).Msg("logout during login, dropping credential")
		return nil, ErrLoggedOut
	}

	cached := &CachedToken{
		Token:        token,
		Claims:       claims,
		CredentialID: claims.ID,
	}

	if c.client != nil {
		reg, err := c.client.RegisterCredential(ctx, core.JWTCredential(token))
		if err != nil {
			c.logger.Warn().Err(err).Str("credentialId", claims.ID).Msg("failed to register credential")
		} else {
			cached.DocumentID = reg.DocumentID
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		c.logger.Info().Str("credentialId", claims.ID).Msg("logout during login, dropping credential")
		return nil, ErrLoggedOut
	}

	// Saved under the lock so a concurrent logout clears after this write.
	if err := c.cache.Save(ctx, cached); err != nil {
		c.logger.Warn().Err(err).Msg("failed to cache credential")
	}

	c.state = StateAuthenticated
	c.token = cached
	c.err = nil

	c.logger.Info().
		Str("did", claims.Issuer).
		Time("expiresAt", cached.ExpiresAt()).
		Msg("logged in")

	cp := *cached
	return &cp, nil
}

// Logout revokes the active credential on the server, best effort, and
// clears it locally. A login still waiting on the wallet is abandoned.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.generation++
	c.state = StateAnonymous
	c.token = nil
	c.err = nil
	c.mu.Unlock()

	if token != nil && c.client != nil {
		c.revoke(ctx, token)
	}

	c.mu.Lock()
	clearErr := c.cache.Clear(ctx)
	c.mu.Unlock()
	if clearErr != nil {
		c.logger.Warn().Err(clearErr).Msg("failed to clear credential cache")
	}
	return clearErr
}

func (c *Controller) revoke(ctx context.Context, token *CachedToken) {
	id := token.CredentialID
	if id == "" {
		id = token.DocumentID
	}
	if id == "" {
		return
	}
	// Revocation needs the credential itself as bearer.
	if token.Token == "" {
		c.logger.Info().Str("credentialId", id).Msg("no bearer token cached, credential stays valid until it expires")
		return
	}
	if err := c.client.RevokeCredential(ctx, token.Token, id, "logout"); err != nil {
		c.logger.Warn().Err(err).Str("credentialId", id).Msg("failed to revoke credential")
	}
}

func (c *Controller) loggedOutSince(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != generation
}

// Restore loads the cached credential. An expired credential or an
// undecodable cache is discarded without a network call. With a client the
// credential is revalidated; an explicit rejection discards it while an
// unreachable server keeps it.
func (c *Controller) Restore(ctx context.Context) (Snapshot, error) {
	token, err := c.cache.Load(ctx)
	if errors.Is(err, ErrCorruptCache) {
		c.logger.Warn().Err(err).Msg("discarding unreadable credential cache")
		return c.discard(ctx)
	}
	if err != nil {
		return c.Snapshot(), err
	}
	if token == nil {
		return c.Snapshot(), nil
	}

	if token.Expired(c.now()) {
		c.logger.Info().Str("credentialId", token.CredentialID).Msg("discarding expired credential")
		return c.discard(ctx)
	}

	if c.client != nil {
		ref := token.Token
		if ref == "" {
			ref = token.CredentialID
		}
		_, err := c.client.Verify(ctx, ref, token.Claims.Address)
		var apiErr *APIError
		switch {
		case err == nil:
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
			c.logger.Info().Err(err).Str("credentialId", token.CredentialID).Msg("discarding rejected credential")
			return c.discard(ctx)
		default:
			c.logger.Warn().Err(err).Msg("could not revalidate credential, trusting cache")
		}
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.token = token
	c.err = nil
	c.mu.Unlock()

	return c.Snapshot(), nil
}

// Reconcile re-issues the credential when the wallet account changed or the
// credential expired. It does nothing unless the controller is
// authenticated.
func (c *Controller) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	state, token := c.state, c.token
	c.mu.Unlock()

	if state != StateAuthenticated || token == nil {
		return nil
	}

	address, err := c.signer.Address()
	if err != nil {
		// No connected account; keep the credential until one appears.
		return nil
	}

	changed := !strings.EqualFold(address.Hex(), token.Claims.Address)
	expired := token.Expired(c.now())
	if !changed && !expired {
		return nil
	}

	c.logger.Info().
		Bool("accountChanged", changed).
		Bool("expired", expired).
		Msg("refreshing credential")

	_, err = c.Login(ctx, service.IssueOptions{
		Audience:  token.Claims.Audience,
		ConnectID: token.Claims.ConnectID,
	})
	return err
}

// Run reconciles every interval until ctx is done
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.Reconcile(ctx)
			if err != nil && !errors.Is(err, ErrLoginInProgress) && !errors.Is(err, ErrLoggedOut) {
				c.logger.Warn().Err(err).Msg("background credential refresh failed")
			}
		}
	}
}

func (c *Controller) discard(ctx context.Context) (Snapshot, error) {
	if err := c.cache.Clear(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear credential cache")
	}

	c.mu.Lock()
	c.state = StateAnonymous
	c.token = nil
	c.err = nil
	c.mu.Unlock()

	return c.Snapshot(), nil
}
