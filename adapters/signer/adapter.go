// Package signer turns a wallet's personal-message signing into the
// recoverable signature primitive used for credential tokens.
package signer

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/internal/eth"
	"github.com/layer-3/renown/ports"
)

// Adapter implements ports.Signer on top of a ports.Wallet.
type Adapter struct {
	wallet ports.Wallet
}

// NewAdapter wraps wallet.
func NewAdapter(wallet ports.Wallet) *Adapter {
	return &Adapter{wallet: wallet}
}

// Address returns the connected account.
func (a *Adapter) Address() (common.Address, error) {
	if a.wallet == nil {
		return common.Address{}, core.ErrSignerUnavailable
	}
	account, ok := a.wallet.Account()
	if !ok {
		return common.Address{}, core.ErrSignerUnavailable
	}
	return account, nil
}

// Sign asks the wallet for a personal-message signature over payload and
// normalizes the recovery byte to 0/1. The payload is passed through
// unhashed; the wallet applies the EIP-191 prefix.
func (a *Adapter) Sign(ctx context.Context, payload []byte) (string, error) {
	account, err := a.Address()
	if err != nil {
		return "", err
	}

	raw, err := a.wallet.SignText(ctx, account, payload)
	if err != nil {
		return "", fmt.Errorf("wallet failed to sign: %w", err)
	}

	sig, err := eth.NormalizeRecoveryID(raw)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// SignTypedData asks the wallet for an EIP-712 signature and returns it hex
// encoded as the wallet produced it.
func (a *Adapter) SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error) {
	account, err := a.Address()
	if err != nil {
		return "", err
	}

	raw, err := a.wallet.SignTypedData(ctx, account, data)
	if err != nil {
		return "", fmt.Errorf("wallet failed to sign typed data: %w", err)
	}
	if len(raw) != eth.SignatureLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", core.ErrInvalidSignatureLength, eth.SignatureLength, len(raw))
	}

	return hexutil.Encode(raw), nil
}
