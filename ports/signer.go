package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Wallet is a connected Ethereum account able to sign personal messages
// and typed data. Signing may block until the account holder responds.
type Wallet interface {
	// Account returns the connected account, or false if none is connected.
	Account() (common.Address, bool)

	// SignText signs data under the EIP-191 personal-message prefix.
	SignText(ctx context.Context, account common.Address, data []byte) ([]byte, error)

	// SignTypedData signs an EIP-712 payload.
	SignTypedData(ctx context.Context, account common.Address, data apitypes.TypedData) ([]byte, error)
}

// Signer produces recoverable signatures for token signing input.
type Signer interface {
	// Address is the account the signatures recover to.
	Address() (common.Address, error)

	// Sign returns a base64url encoded 65-byte r||s||v signature with v in {0,1}.
	Sign(ctx context.Context, payload []byte) (string, error)

	// SignTypedData returns a 0x-hex 65-byte signature over the typed data.
	SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error)
}
