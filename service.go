package renown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/renown/core"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// HTTPClient implements the Client interface against a renown server
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *HTTPClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithClientLogger sets the logger
func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a client for the server at baseURL
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *HTTPClient) RegisterCredential(ctx context.Context, cred core.Credential) (*Registration, error) {
	body := map[string]interface{}{}
	switch cred.Kind {
	case core.KindJWT:
		body["jwt"] = cred.JWT
	case core.KindEIP712:
		body["credential"] = cred.EIP712
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedKind, cred.Kind)
	}

	var reg Registration
	if err := c.do(ctx, http.MethodPost, "/credentials", "", body, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (c *HTTPClient) RevokeCredential(ctx context.Context, token, id, reason string) error {
	body := map[string]string{"reason": reason}
	return c.do(ctx, http.MethodDelete, "/credentials/"+url.PathEscape(id), token, body, nil)
}

func (c *HTTPClient) Verify(ctx context.Context, token, address string) (*VerifyResult, error) {
	body := map[string]string{"token": token, "address": address}

	var result VerifyResult
	if err := c.do(ctx, http.MethodPost, "/verify", "", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Status(ctx context.Context, addressOrDID string) (*CredentialStatus, error) {
	var status CredentialStatus
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(addressOrDID), "", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPClient) Me(ctx context.Context, token string) (*Identity, error) {
	var identity Identity
	if err := c.do(ctx, http.MethodGet, "/me", token, nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *HTTPClient) OpenSession(ctx context.Context, sessionID string) (*SessionState, error) {
	var state SessionState
	if err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID), "", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *HTTPClient) PollSession(ctx context.Context, sessionID string) (*SessionState, error) {
	var state SessionState
	if err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionID), "", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *HTTPClient) CompleteSession(ctx context.Context, sessionID string, data core.SessionCompletion) error {
	return c.do(ctx, http.MethodPut, "/session/"+url.PathEscape(sessionID), "", data, nil)
}

func (c *HTTPClient) CancelSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), "", nil, nil)
}

// do performs a rate-limited JSON request. Any 2xx status is success.
func (c *HTTPClient) do(ctx context.Context, method, path, bearer string, body, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("renown API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
			Endpoint:   path,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to the raw body.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
