package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/service"
	"github.com/rs/zerolog"
)

// VerifyRequest carries either a compact JWT or a credential id in Token.
type VerifyRequest struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

// VerifyPayload is the normalized claim set of a valid credential.
type VerifyPayload struct {
	Issuer       string `json:"iss"`
	Audience     string `json:"aud"`
	ExpiresAt    int64  `json:"exp"`
	IssuedAt     int64  `json:"iat"`
	Address      string `json:"address"`
	ChainID      int64  `json:"chainId"`
	ConnectID    string `json:"connectId,omitempty"`
	CredentialID string `json:"credentialId,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`
}

// VerifyResponse is returned by POST /verify for every outcome.
type VerifyResponse struct {
	Valid   bool           `json:"valid"`
	Payload *VerifyPayload `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RegisterRequest carries exactly one credential encoding.
type RegisterRequest struct {
	JWT        string                 `json:"jwt"`
	Credential *core.EIP712Credential `json:"credential"`
}

// StatusResponse describes the newest credential held for an address.
type StatusResponse struct {
	Address          string              `json:"address"`
	DID              string              `json:"did"`
	Status           string              `json:"status"`
	Kind             core.CredentialKind `json:"kind"`
	DocumentID       string              `json:"documentId"`
	CredentialID     string              `json:"credentialId"`
	Issuer           string              `json:"issuer"`
	Subject          string              `json:"subject,omitempty"`
	Audience         string              `json:"audience"`
	IssuedAt         int64               `json:"issuedAt"`
	ExpiresAt        int64               `json:"expiresAt"`
	Revoked          bool                `json:"revoked"`
	RevokedAt        string              `json:"revokedAt,omitempty"`
	RevocationReason string              `json:"revocationReason,omitempty"`
}

// CredentialHandlers serve verification, registration and status
type CredentialHandlers struct {
	credentials *service.CredentialService
	logger      zerolog.Logger
}

// NewCredentialHandlers creates new credential handlers
func NewCredentialHandlers(credentials *service.CredentialService, logger zerolog.Logger) *CredentialHandlers {
	return &CredentialHandlers{
		credentials: credentials,
		logger:      logger,
	}
}

// Verify checks a JWT, or a registered credential id, against an address
func (h *CredentialHandlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, VerifyResponse{Error: "Invalid request"})
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, VerifyResponse{Error: "Token is required"})
		return
	}
	if req.Address == "" {
		c.JSON(http.StatusBadRequest, VerifyResponse{Error: "Address is required for verification"})
		return
	}

	ctx := c.Request.Context()
	verifier := h.credentials.Verifier()

	var (
		verification *core.Verification
		err          error
	)
	if strings.Count(req.Token, ".") == 2 {
		verification, err = verifier.Verify(ctx, req.Token)
		if err == nil && !strings.EqualFold(verification.Claims.Address, req.Address) {
			err = core.ErrNotFound
		}
	} else {
		verification, err = verifier.VerifyByID(ctx, req.Token, req.Address)
	}

	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn().Err(err).Msg("credential verification failed")
			status = http.StatusUnauthorized
		}
		c.JSON(status, VerifyResponse{Error: err.Error()})
		return
	}

	claims := verification.Claims
	c.JSON(http.StatusOK, VerifyResponse{
		Valid: true,
		Payload: &VerifyPayload{
			Issuer:       claims.Issuer,
			Audience:     claims.Audience,
			ExpiresAt:    claims.ExpiresAt,
			IssuedAt:     claims.IssuedAt,
			Address:      claims.Address,
			ChainID:      claims.ChainID,
			ConnectID:    claims.ConnectID,
			CredentialID: verification.CredentialID,
			DocumentID:   verification.DocumentID,
		},
	})
}

// Register verifies and stores a credential
func (h *CredentialHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var cred core.Credential
	switch {
	case req.JWT != "" && req.Credential == nil:
		cred = core.JWTCredential(req.JWT)
	case req.JWT == "" && req.Credential != nil:
		cred = core.EIP712TypedCredential(req.Credential)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly one of jwt or credential is required"})
		return
	}

	record, err := h.credentials.Register(c.Request.Context(), cred)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"documentId":   record.DocumentID,
		"credentialId": record.CredentialID,
	})
}

// Revoke tombstones a credential by document or credential id. The bearer
// must hold the credential's address.
func (h *CredentialHandlers) Revoke(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if _, err := h.credentials.RevokeAs(c.Request.Context(), claims.Address, c.Param("id"), req.Reason); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not found or already revoked"})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// Status returns the newest credential for an address or DID
func (h *CredentialHandlers) Status(c *gin.Context) {
	record, err := h.credentials.Status(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := StatusResponse{
		Address:          record.Address,
		DID:              core.DeriveDID(record.Address, record.ChainID),
		Status:           record.Status(),
		Kind:             record.Kind,
		DocumentID:       record.DocumentID,
		CredentialID:     record.CredentialID,
		Issuer:           record.Issuer,
		Subject:          record.Subject,
		Audience:         record.Audience,
		IssuedAt:         record.IssuedAt,
		ExpiresAt:        record.ExpiresAt,
		Revoked:          record.Revoked,
		RevocationReason: record.RevocationReason,
	}
	if record.RevokedAt != nil {
		resp.RevokedAt = record.RevokedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the identity of the bearer credential
func (h *CredentialHandlers) Me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":   claims.Address,
		"chainId":   claims.ChainID,
		"did":       claims.Issuer,
		"connectId": claims.ConnectID,
	})
}

func (h *CredentialHandlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("credential request failed")
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}
