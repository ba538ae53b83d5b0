package signer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/layer-3/renown/internal/eth"
)

// KeystoreWallet signs with an unlocked account from an encrypted keystore
// directory. Keystore signatures carry v in 0/1.
type KeystoreWallet struct {
	ks      *keystore.KeyStore
	account accounts.Account
}

// OpenKeystoreWallet unlocks address in the keystore at dir. An empty
// address selects the first account found.
func OpenKeystoreWallet(dir, address, passphrase string) (*KeystoreWallet, error) {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	return newKeystoreWallet(ks, address, passphrase)
}

func newKeystoreWallet(ks *keystore.KeyStore, address, passphrase string) (*KeystoreWallet, error) {
	var account accounts.Account
	if address == "" {
		all := ks.Accounts()
		if len(all) == 0 {
			return nil, fmt.Errorf("keystore has no accounts")
		}
		account = all[0]
	} else {
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid address %q", address)
		}
		found, err := ks.Find(accounts.Account{Address: common.HexToAddress(address)})
		if err != nil {
			return nil, fmt.Errorf("failed to find account %s: %w", address, err)
		}
		account = found
	}

	if err := ks.Unlock(account, passphrase); err != nil {
		return nil, fmt.Errorf("failed to unlock account %s: %w", account.Address.Hex(), err)
	}

	return &KeystoreWallet{ks: ks, account: account}, nil
}

func (w *KeystoreWallet) Account() (common.Address, bool) {
	return w.account.Address, true
}

func (w *KeystoreWallet) SignText(ctx context.Context, account common.Address, data []byte) ([]byte, error) {
	return w.signHash(ctx, account, accounts.TextHash(data))
}

func (w *KeystoreWallet) SignTypedData(ctx context.Context, account common.Address, data apitypes.TypedData) ([]byte, error) {
	hash, err := eth.HashTypedData(data)
	if err != nil {
		return nil, err
	}
	return w.signHash(ctx, account, hash)
}

func (w *KeystoreWallet) signHash(ctx context.Context, account common.Address, hash []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if account != w.account.Address {
		return nil, fmt.Errorf("unknown account %s", account.Hex())
	}
	return w.ks.SignHash(w.account, hash)
}
