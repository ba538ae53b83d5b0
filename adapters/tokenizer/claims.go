package tokenizer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/renown/core"
)

// jwtClaims adapts core.Claims to the jwt.Claims interface.
type jwtClaims core.Claims

func (c *jwtClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return unixDate(c.ExpiresAt), nil
}

func (c *jwtClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return unixDate(c.IssuedAt), nil
}

func (c *jwtClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c *jwtClaims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

func (c *jwtClaims) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c *jwtClaims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

func unixDate(sec int64) *jwt.NumericDate {
	if sec == 0 {
		return nil
	}
	return &jwt.NumericDate{Time: time.Unix(sec, 0)}
}
