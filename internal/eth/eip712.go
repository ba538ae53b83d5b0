package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/layer-3/renown/core"
)

// CredentialPrimaryType is the EIP-712 primary type of a credential.
const CredentialPrimaryType = "VerifiableCredential"

var credentialTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	CredentialPrimaryType: {
		{Name: "@context", Type: "string[]"},
		{Name: "type", Type: "string[]"},
		{Name: "id", Type: "string"},
		{Name: "issuer", Type: "Issuer"},
		{Name: "credentialSubject", Type: "CredentialSubject"},
		{Name: "credentialSchema", Type: "CredentialSchema"},
		{Name: "issuanceDate", Type: "string"},
		{Name: "expirationDate", Type: "string"},
	},
	"CredentialSchema": {
		{Name: "id", Type: "string"},
		{Name: "type", Type: "string"},
	},
	"CredentialSubject": {
		{Name: "app", Type: "string"},
		{Name: "id", Type: "string"},
	},
	"Issuer": {
		{Name: "id", Type: "string"},
		{Name: "ethereumAddress", Type: "string"},
	},
}

// CredentialTypedData builds the EIP-712 payload for a verifiable credential.
func CredentialTypedData(vc core.VerifiableCredential, domain core.EIP712Domain) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       credentialTypes,
		PrimaryType: CredentialPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Version: domain.Version,
			ChainId: math.NewHexOrDecimal256(domain.ChainID),
		},
		Message: apitypes.TypedDataMessage{
			"@context": stringsToAny(vc.Context),
			"type":     stringsToAny(vc.Type),
			"id":       vc.ID,
			"issuer": map[string]interface{}{
				"id":              vc.Issuer.ID,
				"ethereumAddress": vc.Issuer.EthereumAddress,
			},
			"credentialSubject": map[string]interface{}{
				"app": vc.CredentialSubject.App,
				"id":  vc.CredentialSubject.ID,
			},
			"credentialSchema": map[string]interface{}{
				"id":   vc.CredentialSchema.ID,
				"type": vc.CredentialSchema.Type,
			},
			"issuanceDate":   vc.IssuanceDate,
			"expirationDate": vc.ExpirationDate,
		},
	}
}

// HashTypedData returns the EIP-712 digest that wallets sign.
func HashTypedData(data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hash, nil
}

// RecoverTypedData returns the address that signed the typed data.
func RecoverTypedData(data apitypes.TypedData, sig []byte) (common.Address, error) {
	hash, err := HashTypedData(data)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverHash(hash, sig)
}

// VerifySignatureAgainstAddress checks a hex typed-data signature against
// the expected signer.
func VerifySignatureAgainstAddress(data apitypes.TypedData, signature string, expected common.Address) (bool, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	recovered, err := RecoverTypedData(data, sig)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}

func stringsToAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
