// Package tokenizer encodes and decodes credential tokens. It performs no
// I/O; signing happens outside, over the signing input it produces.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/renown/core"
)

// Codec builds and parses JWT-shaped credential tokens.
type Codec struct {
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for injected defaults.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		now:    time.Now,
		parser: jwt.NewParser(jwt.WithStrictDecoding(), jwt.WithValidMethods([]string{AlgES256KR})),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decoded is a parsed token with the pieces signature checks need.
type Decoded struct {
	Header       map[string]interface{}
	Claims       core.Claims
	SigningInput string
	Signature    []byte
}

// Encode returns the unsigned header.payload signing input for claims.
// The caller's claims are not modified: iat defaults to now and a positive
// expiresIn sets exp relative to iat.
func (c *Codec) Encode(claims core.Claims, expiresIn time.Duration) (string, core.Claims, error) {
	out := claims
	if out.IssuedAt == 0 {
		out.IssuedAt = c.now().Unix()
	}
	if expiresIn > 0 {
		out.ExpiresAt = out.IssuedAt + int64(expiresIn/time.Second)
	}
	if out.ExpiresAt <= out.IssuedAt {
		return "", core.Claims{}, fmt.Errorf("%w: exp %d is not after iat %d", core.ErrMalformedToken, out.ExpiresAt, out.IssuedAt)
	}

	jc := jwtClaims(out)
	token := jwt.NewWithClaims(ES256KR, &jc)
	signingInput, err := token.SigningString()
	if err != nil {
		return "", core.Claims{}, fmt.Errorf("failed to encode token: %w", err)
	}
	return signingInput, out, nil
}

// Compose appends a base64url signature to a signing input.
func (c *Codec) Compose(signingInput, signature string) string {
	return signingInput + "." + signature
}

// Decode parses a compact token. It fails with core.ErrMalformedToken unless
// the token has exactly three non-empty base64url segments and the payload
// is a JSON object. The signature is decoded but not checked.
func (c *Codec) Decode(token string) (*Decoded, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", core.ErrMalformedToken, len(parts))
	}

	segments := make([][]byte, 3)
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: segment %d is empty", core.ErrMalformedToken, i)
		}
		seg, err := c.parser.DecodeSegment(part)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %v", core.ErrMalformedToken, i, err)
		}
		segments[i] = seg
	}

	if !isJSONObject(segments[1]) {
		return nil, fmt.Errorf("%w: payload is not a JSON object", core.ErrMalformedToken)
	}

	var claims jwtClaims
	parsed, _, err := c.parser.ParseUnverified(token, &claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	}

	return &Decoded{
		Header:       parsed.Header,
		Claims:       core.Claims(claims),
		SigningInput: parts[0] + "." + parts[1],
		Signature:    segments[2],
	}, nil
}

// VerifySignature checks that the token was signed by expected.
func (c *Codec) VerifySignature(d *Decoded, expected common.Address) error {
	alg, _ := d.Header["alg"].(string)
	method := jwt.GetSigningMethod(alg)
	if method == nil || method.Alg() != AlgES256KR {
		return fmt.Errorf("%w: unsupported alg %q", core.ErrInvalidSignature, alg)
	}
	return method.Verify(d.SigningInput, d.Signature, expected)
}

func isJSONObject(data []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return false
	}
	return obj != nil
}
