// Package eth holds the signing conventions shared by wallets and verifiers.
package eth

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/renown/core"
)

// SignatureLength is the size of an r||s||v secp256k1 signature.
const SignatureLength = crypto.SignatureLength

// NormalizeRecoveryID returns a copy of sig with v remapped from the
// Ethereum 27/28 convention to 0/1.
func NormalizeRecoveryID(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", core.ErrInvalidSignatureLength, SignatureLength, len(sig))
	}
	out := make([]byte, SignatureLength)
	copy(out, sig)
	if out[crypto.RecoveryIDOffset] >= 27 {
		out[crypto.RecoveryIDOffset] -= 27
	}
	return out, nil
}

// SignText signs data the way a wallet's personal_sign does, including the
// 27/28 recovery byte.
func SignText(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	return SignHash(key, accounts.TextHash(data))
}

// SignHash signs a 32-byte digest and returns the signature with v in 27/28.
func SignHash(key *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverHash returns the address that produced sig over hash. Both v
// conventions are accepted.
func RecoverHash(hash, sig []byte) (common.Address, error) {
	normalized, err := NormalizeRecoveryID(sig)
	if err != nil {
		return common.Address{}, err
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", core.ErrInvalidSignature, normalized[crypto.RecoveryIDOffset])
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverText returns the address that personal-signed data.
func RecoverText(data, sig []byte) (common.Address, error) {
	return RecoverHash(accounts.TextHash(data), sig)
}
