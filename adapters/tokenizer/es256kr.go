package tokenizer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/internal/eth"
)

// AlgES256KR is the recoverable secp256k1 JWT algorithm.
const AlgES256KR = "ES256K-R"

// SigningMethodES256KR signs the JWT signing input as an EIP-191 personal
// message. Signatures are 65 bytes, r||s||v with v in {0,1}.
//
// Sign accepts an *ecdsa.PrivateKey. Verify accepts the expected signer as
// a common.Address.
type SigningMethodES256KR struct{}

// ES256KR is the shared instance registered with the jwt package.
var ES256KR = &SigningMethodES256KR{}

func init() {
	jwt.RegisterSigningMethod(AlgES256KR, func() jwt.SigningMethod { return ES256KR })
}

func (m *SigningMethodES256KR) Alg() string { return AlgES256KR }

func (m *SigningMethodES256KR) Sign(signingString string, key interface{}) ([]byte, error) {
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	sig, err := eth.SignText(priv, []byte(signingString))
	if err != nil {
		return nil, err
	}
	return eth.NormalizeRecoveryID(sig)
}

func (m *SigningMethodES256KR) Verify(signingString string, sig []byte, key interface{}) error {
	expected, ok := key.(common.Address)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	if len(sig) != eth.SignatureLength {
		return fmt.Errorf("%w: expected %d bytes, got %d", core.ErrInvalidSignatureLength, eth.SignatureLength, len(sig))
	}
	if sig[eth.SignatureLength-1] > 1 {
		return fmt.Errorf("%w: recovery id must be 0 or 1", core.ErrInvalidSignature)
	}
	recovered, err := eth.RecoverText([]byte(signingString), sig)
	if err != nil {
		return err
	}
	if recovered != expected {
		return fmt.Errorf("%w: signed by %s, expected %s", core.ErrInvalidSignature, recovered.Hex(), expected.Hex())
	}
	return nil
}
