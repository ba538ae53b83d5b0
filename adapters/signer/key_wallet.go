package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/layer-3/renown/internal/eth"
)

// KeyWallet signs with an in-process secp256k1 key. Its signatures use the
// 27/28 recovery convention, like browser wallets.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyWallet wraps a private key.
func NewKeyWallet(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// KeyWalletFromHex parses a hex private key, with or without 0x.
func KeyWalletFromHex(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeyWallet(key), nil
}

// GenerateKeyWallet creates a wallet with a fresh random key.
func GenerateKeyWallet() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewKeyWallet(key), nil
}

func (w *KeyWallet) Account() (common.Address, bool) {
	return w.address, true
}

func (w *KeyWallet) SignText(ctx context.Context, account common.Address, data []byte) ([]byte, error) {
	if err := w.check(ctx, account); err != nil {
		return nil, err
	}
	return eth.SignText(w.key, data)
}

func (w *KeyWallet) SignTypedData(ctx context.Context, account common.Address, data apitypes.TypedData) ([]byte, error) {
	if err := w.check(ctx, account); err != nil {
		return nil, err
	}
	hash, err := eth.HashTypedData(data)
	if err != nil {
		return nil, err
	}
	return eth.SignHash(w.key, hash)
}

func (w *KeyWallet) check(ctx context.Context, account common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account != w.address {
		return fmt.Errorf("unknown account %s", account.Hex())
	}
	return nil
}
