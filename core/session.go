package core

import "time"

// SessionStatus is the externally visible state of a rendezvous session.
type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionReady   SessionStatus = "ready"
)

// DefaultSessionTTL bounds how long a rendezvous session is reachable.
const DefaultSessionTTL = 5 * time.Minute

// ConsoleSession coordinates a polling CLI with the browser that approves it.
type ConsoleSession struct {
	SessionID      string        `json:"sessionId"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	Address        string        `json:"address,omitempty"`
	ChainID        int64         `json:"chainId,omitempty"`
	DID            string        `json:"did,omitempty"`
	ConnectDID     string        `json:"connectDid,omitempty"`
	CredentialID   string        `json:"credentialId,omitempty"`
	UserDocumentID string        `json:"userDocumentId,omitempty"`
}

// Expired reports whether the session is older than ttl at now.
func (s *ConsoleSession) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// SessionCompletion is the payload a browser writes to finish a session.
type SessionCompletion struct {
	Address        string `json:"address"`
	ChainID        int64  `json:"chainId"`
	DID            string `json:"did"`
	CredentialID   string `json:"credentialId"`
	UserDocumentID string `json:"userDocumentId,omitempty"`
	ConnectDID     string `json:"connectDid,omitempty"`
}

// Validate requires every field the polling side depends on.
func (c SessionCompletion) Validate() error {
	if c.Address == "" || c.ChainID == 0 || c.DID == "" || c.CredentialID == "" {
		return ErrMissingFields
	}
	return nil
}

// Apply moves the session to ready with the completion payload.
func (s *ConsoleSession) Apply(c SessionCompletion) {
	s.Status = SessionReady
	s.Address = c.Address
	s.ChainID = c.ChainID
	s.DID = c.DID
	s.CredentialID = c.CredentialID
	s.UserDocumentID = c.UserDocumentID
	s.ConnectDID = c.ConnectDID
}
