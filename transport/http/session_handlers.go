package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/service"
	"github.com/rs/zerolog"
)

// SessionResponse is the wire form of a rendezvous session.
type SessionResponse struct {
	SessionID      string             `json:"sessionId"`
	Status         core.SessionStatus `json:"status"`
	Address        string             `json:"address,omitempty"`
	ChainID        int64              `json:"chainId,omitempty"`
	DID            string             `json:"did,omitempty"`
	ConnectDID     string             `json:"connectDid,omitempty"`
	CredentialID   string             `json:"credentialId,omitempty"`
	UserDocumentID string             `json:"userDocumentId,omitempty"`
}

func newSessionResponse(s *core.ConsoleSession) SessionResponse {
	return SessionResponse{
		SessionID:      s.SessionID,
		Status:         s.Status,
		Address:        s.Address,
		ChainID:        s.ChainID,
		DID:            s.DID,
		ConnectDID:     s.ConnectDID,
		CredentialID:   s.CredentialID,
		UserDocumentID: s.UserDocumentID,
	}
}

// SessionHandlers serve the console rendezvous endpoints
type SessionHandlers struct {
	rendezvous *service.Rendezvous
	logger     zerolog.Logger
}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers(rendezvous *service.Rendezvous, logger zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{
		rendezvous: rendezvous,
		logger:     logger,
	}
}

// Create opens a pending session, or returns the existing one with 200
func (h *SessionHandlers) Create(c *gin.Context) {
	sessionID := c.Param("sessionId")

	session, created, err := h.rendezvous.Open(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, SessionResponse{SessionID: session.SessionID, Status: session.Status})
}

// Poll returns the session state; a ready session is handed off exactly once
func (h *SessionHandlers) Poll(c *gin.Context) {
	session, err := h.rendezvous.Poll(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

// Complete marks the session ready with the approval payload
func (h *SessionHandlers) Complete(c *gin.Context) {
	var req core.SessionCompletion
	if err := c.ShouldBindJSON(&req); err != nil {
		message := "Invalid request"
		if errors.Is(err, io.EOF) {
			message = missingFieldsMessage
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return
	}

	session, err := h.rendezvous.Complete(c.Request.Context(), c.Param("sessionId"), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{SessionID: session.SessionID, Status: session.Status})
}

// Cancel deletes the session
func (h *SessionHandlers) Cancel(c *gin.Context) {
	if err := h.rendezvous.Cancel(c.Request.Context(), c.Param("sessionId")); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SessionHandlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if errors.Is(err, core.ErrMissingFields) {
		message = missingFieldsMessage
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("sessionId", c.Param("sessionId")).Msg("session request failed")
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}
