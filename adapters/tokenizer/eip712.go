package tokenizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/internal/eth"
)

const (
	CredentialContext    = "https://www.w3.org/2018/credentials/v1"
	CredentialSchemaID   = "https://renown.id/schemas/renown-credential/v1"
	CredentialSchemaType = "JsonSchemaValidator2018"
	EIP712ProofType      = "EthereumEip712Signature2021"
	EIP712DomainVersion  = "1"
)

// CredentialTypes are the type values of an issued credential.
var CredentialTypes = []string{"VerifiableCredential", "RenownCredential"}

// NewVerifiableCredential assembles the unsigned typed credential body.
func NewVerifiableCredential(id, issuerDID string, address common.Address, subject, app string, issuedAt, expiresAt time.Time) core.VerifiableCredential {
	if subject == "" {
		subject = issuerDID
	}
	return core.VerifiableCredential{
		Context: []string{CredentialContext},
		Type:    append([]string(nil), CredentialTypes...),
		ID:      id,
		Issuer: core.CredentialIssuer{
			ID:              issuerDID,
			EthereumAddress: address.Hex(),
		},
		CredentialSubject: core.CredentialSubject{ID: subject, App: app},
		CredentialSchema:  core.CredentialSchema{ID: CredentialSchemaID, Type: CredentialSchemaType},
		IssuanceDate:      issuedAt.UTC().Format(time.RFC3339),
		ExpirationDate:    expiresAt.UTC().Format(time.RFC3339),
	}
}

// TypedData returns the EIP-712 payload signed for c.
func TypedData(c *core.EIP712Credential) apitypes.TypedData {
	return eth.CredentialTypedData(c.Credential, c.Proof.Domain)
}

// EncodeEIP712 serializes a typed credential.
func EncodeEIP712(c *core.EIP712Credential) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeEIP712 parses and structurally checks a typed credential.
func DecodeEIP712(data []byte) (*core.EIP712Credential, error) {
	var c core.EIP712Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	}
	if err := CheckEIP712(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CheckEIP712 validates the shape of a typed credential without checking
// its signature.
func CheckEIP712(c *core.EIP712Credential) error {
	vc := c.Credential
	switch {
	case vc.ID == "":
		return fmt.Errorf("%w: credential id is empty", core.ErrMalformedToken)
	case !common.IsHexAddress(vc.Issuer.EthereumAddress):
		return fmt.Errorf("%w: issuer address %q", core.ErrMalformedToken, vc.Issuer.EthereumAddress)
	case c.Proof.Domain.ChainID <= 0:
		return fmt.Errorf("%w: domain chain id %d", core.ErrMalformedToken, c.Proof.Domain.ChainID)
	}
	sig, err := hexutil.Decode(c.Proof.Signature)
	if err != nil {
		return fmt.Errorf("%w: proof value: %v", core.ErrMalformedToken, err)
	}
	if len(sig) != eth.SignatureLength {
		return fmt.Errorf("%w: proof value is %d bytes", core.ErrMalformedToken, len(sig))
	}
	if _, err := time.Parse(time.RFC3339, vc.IssuanceDate); err != nil {
		return fmt.Errorf("%w: issuance date: %v", core.ErrMalformedToken, err)
	}
	if _, err := time.Parse(time.RFC3339, vc.ExpirationDate); err != nil {
		return fmt.Errorf("%w: expiration date: %v", core.ErrMalformedToken, err)
	}
	return nil
}

// EIP712Claims projects a typed credential onto the token claim set.
func EIP712Claims(c *core.EIP712Credential) (core.Claims, error) {
	if err := CheckEIP712(c); err != nil {
		return core.Claims{}, err
	}
	vc := c.Credential
	issued, _ := time.Parse(time.RFC3339, vc.IssuanceDate)
	expires, _ := time.Parse(time.RFC3339, vc.ExpirationDate)

	subject := vc.CredentialSubject.ID
	if subject == vc.Issuer.ID {
		subject = ""
	}

	return core.Claims{
		Issuer:    vc.Issuer.ID,
		Subject:   subject,
		Audience:  vc.CredentialSubject.App,
		IssuedAt:  issued.Unix(),
		ExpiresAt: expires.Unix(),
		ID:        vc.ID,
		Address:   common.HexToAddress(vc.Issuer.EthereumAddress).Hex(),
		ChainID:   c.Proof.Domain.ChainID,
		ConnectID: subject,
	}, nil
}

// VerifyEIP712 checks that the proof was produced by expected.
func VerifyEIP712(c *core.EIP712Credential, expected common.Address) error {
	ok, err := eth.VerifySignatureAgainstAddress(TypedData(c), c.Proof.Signature, expected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: typed data not signed by %s", core.ErrInvalidSignature, expected.Hex())
	}
	return nil
}
