package core

import (
	"strings"
	"time"
)

// DefaultAudience identifies the relying application when the issuer is
// not given an explicit audience.
const DefaultAudience = "renown-app"

// Claims is the claim set carried by an authorization token.
type Claims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub,omitempty"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti,omitempty"`
	Address   string `json:"address"`
	ChainID   int64  `json:"chainId"`
	ConnectID string `json:"connectId,omitempty"`
}

// Expired reports whether the claims are no longer valid at now.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt <= now.Unix()
}

// CredentialKind discriminates the credential encodings.
type CredentialKind string

const (
	KindJWT    CredentialKind = "jwt"
	KindEIP712 CredentialKind = "eip712"
)

// Credential is a signed authorization in one of the supported encodings.
// Exactly one of JWT or EIP712 is set, matching Kind.
type Credential struct {
	Kind   CredentialKind    `json:"kind"`
	JWT    string            `json:"jwt,omitempty"`
	EIP712 *EIP712Credential `json:"eip712,omitempty"`
}

// JWTCredential wraps a compact token.
func JWTCredential(token string) Credential {
	return Credential{Kind: KindJWT, JWT: token}
}

// EIP712TypedCredential wraps a typed-data credential.
func EIP712TypedCredential(c *EIP712Credential) Credential {
	return Credential{Kind: KindEIP712, EIP712: c}
}

// CredentialIssuer names the signer of a verifiable credential.
type CredentialIssuer struct {
	ID              string `json:"id"`
	EthereumAddress string `json:"ethereumAddress"`
}

// CredentialSubject names who the credential is about and for which app.
type CredentialSubject struct {
	ID  string `json:"id"`
	App string `json:"app"`
}

type CredentialSchema struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// VerifiableCredential is the EIP-712 message body.
type VerifiableCredential struct {
	Context           []string          `json:"@context"`
	Type              []string          `json:"type"`
	ID                string            `json:"id"`
	Issuer            CredentialIssuer  `json:"issuer"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
	CredentialSchema  CredentialSchema  `json:"credentialSchema"`
	IssuanceDate      string            `json:"issuanceDate"`
	ExpirationDate    string            `json:"expirationDate"`
}

// EIP712Domain is the signing domain for typed credentials.
type EIP712Domain struct {
	Version string `json:"version"`
	ChainID int64  `json:"chainId"`
}

// EIP712Proof is the detached signature over the typed credential.
type EIP712Proof struct {
	Type        string       `json:"type"`
	Signature   string       `json:"proofValue"`
	Domain      EIP712Domain `json:"eip712Domain"`
	PrimaryType string       `json:"primaryType"`
}

// EIP712Credential is a verifiable credential together with its proof.
type EIP712Credential struct {
	Credential VerifiableCredential `json:"credential"`
	Proof      EIP712Proof          `json:"proof"`
}

// StoredCredential is the persisted, revocable view of an issued credential.
// DocumentID is the storage address; CredentialID is the identity holders
// refer to.
type StoredCredential struct {
	DocumentID       string            `json:"documentId"`
	CredentialID     string            `json:"credentialId"`
	Kind             CredentialKind    `json:"kind"`
	JWT              string            `json:"jwt,omitempty"`
	EIP712           *EIP712Credential `json:"eip712,omitempty"`
	Issuer           string            `json:"issuer"`
	Subject          string            `json:"subject,omitempty"`
	Audience         string            `json:"audience"`
	Address          string            `json:"address"`
	ChainID          int64             `json:"chainId"`
	IssuedAt         int64             `json:"issuedAt"`
	ExpiresAt        int64             `json:"expiresAt"`
	Revoked          bool              `json:"revoked"`
	RevokedAt        *time.Time        `json:"revokedAt,omitempty"`
	RevocationReason string            `json:"revocationReason,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Claims projects the record back onto a token claim set.
func (r *StoredCredential) Claims() Claims {
	return Claims{
		Issuer:    r.Issuer,
		Subject:   r.Subject,
		Audience:  r.Audience,
		IssuedAt:  r.IssuedAt,
		ExpiresAt: r.ExpiresAt,
		ID:        r.CredentialID,
		Address:   r.Address,
		ChainID:   r.ChainID,
		ConnectID: r.Subject,
	}
}

// Status is "revoked" for tombstoned records and "active" otherwise.
func (r *StoredCredential) Status() string {
	if r.Revoked {
		return "revoked"
	}
	return "active"
}

// CredentialFilter selects stored credentials. Zero-valued fields match
// anything.
type CredentialFilter struct {
	DocumentID   string
	Address      string
	ChainID      int64
	Subject      string
	CredentialID string
}

// Matches reports whether r satisfies every non-zero field of f.
func (f CredentialFilter) Matches(r *StoredCredential) bool {
	if f.DocumentID != "" && f.DocumentID != r.DocumentID {
		return false
	}
	if f.Address != "" && !strings.EqualFold(f.Address, r.Address) {
		return false
	}
	if f.ChainID != 0 && f.ChainID != r.ChainID {
		return false
	}
	if f.Subject != "" && f.Subject != r.Subject {
		return false
	}
	if f.CredentialID != "" && f.CredentialID != r.CredentialID {
		return false
	}
	return true
}

// Verification is the outcome of a successful credential check.
type Verification struct {
	Kind         CredentialKind
	Claims       Claims
	CredentialID string
	DocumentID   string
}
