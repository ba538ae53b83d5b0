package signer

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/internal/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type disconnectedWallet struct{}

func (disconnectedWallet) Account() (common.Address, bool) { return common.Address{}, false }

func (disconnectedWallet) SignText(context.Context, common.Address, []byte) ([]byte, error) {
	return nil, nil
}

func (disconnectedWallet) SignTypedData(context.Context, common.Address, apitypes.TypedData) ([]byte, error) {
	return nil, nil
}

type shortWallet struct{ disconnectedWallet }

func (shortWallet) Account() (common.Address, bool) { return common.HexToAddress("0x01"), true }

func (shortWallet) SignText(context.Context, common.Address, []byte) ([]byte, error) {
	return make([]byte, 64), nil
}

func typedData(address common.Address) apitypes.TypedData {
	return eth.CredentialTypedData(core.VerifiableCredential{
		Context: []string{"https://www.w3.org/2018/credentials/v1"},
		Type:    []string{"VerifiableCredential"},
		ID:      "urn:uuid:1",
		Issuer:  core.CredentialIssuer{ID: core.DeriveDID(address.Hex(), 1), EthereumAddress: address.Hex()},
	}, core.EIP712Domain{Version: "1", ChainID: 1})
}

func TestAdapterSign(t *testing.T) {
	wallet, err := GenerateKeyWallet()
	require.NoError(t, err)
	adapter := NewAdapter(wallet)

	address, err := adapter.Address()
	require.NoError(t, err)

	encoded, err := adapter.Sign(context.Background(), []byte("header.payload"))
	require.NoError(t, err)

	sig, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Len(t, sig, eth.SignatureLength)
	assert.LessOrEqual(t, sig[64], byte(1))

	recovered, err := eth.RecoverText([]byte("header.payload"), sig)
	require.NoError(t, err)
	assert.Equal(t, address, recovered)
}

func TestAdapterSignTypedData(t *testing.T) {
	wallet, err := GenerateKeyWallet()
	require.NoError(t, err)
	adapter := NewAdapter(wallet)
	address, _ := wallet.Account()

	data := typedData(address)
	sig, err := adapter.SignTypedData(context.Background(), data)
	require.NoError(t, err)

	ok, err := eth.VerifySignatureAgainstAddress(data, sig, address)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdapterWithoutAccount(t *testing.T) {
	_, err := NewAdapter(disconnectedWallet{}).Sign(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, core.ErrSignerUnavailable)

	_, err = NewAdapter(nil).Address()
	assert.ErrorIs(t, err, core.ErrSignerUnavailable)
}

func TestAdapterRejectsShortSignature(t *testing.T) {
	_, err := NewAdapter(shortWallet{}).Sign(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, core.ErrInvalidSignatureLength)
}

func TestKeyWalletFromHex(t *testing.T) {
	const key = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	wallet, err := KeyWalletFromHex(key)
	require.NoError(t, err)

	address, ok := wallet.Account()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), address)

	_, err = KeyWalletFromHex("zz")
	assert.Error(t, err)
}

func TestKeyWalletRejectsOtherAccount(t *testing.T) {
	wallet, err := GenerateKeyWallet()
	require.NoError(t, err)

	_, err = wallet.SignText(context.Background(), common.HexToAddress("0x01"), []byte("x"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	address, _ := wallet.Account()
	_, err = wallet.SignText(ctx, address, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeystoreWallet(t *testing.T) {
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.NewAccount("secret")
	require.NoError(t, err)

	_, err = newKeystoreWallet(ks, account.Address.Hex(), "wrong")
	assert.Error(t, err)

	wallet, err := newKeystoreWallet(ks, "", "secret")
	require.NoError(t, err)

	adapter := NewAdapter(wallet)
	encoded, err := adapter.Sign(context.Background(), []byte("payload"))
	require.NoError(t, err)
	sig, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)

	recovered, err := eth.RecoverText([]byte("payload"), sig)
	require.NoError(t, err)
	assert.Equal(t, account.Address, recovered)

	typed, err := adapter.SignTypedData(context.Background(), typedData(account.Address))
	require.NoError(t, err)
	_, err = hexutil.Decode(typed)
	assert.NoError(t, err)
}

func TestKeystoreWalletEmpty(t *testing.T) {
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	_, err := newKeystoreWallet(ks, "", "")
	assert.Error(t, err)

	_, err = newKeystoreWallet(ks, "not-an-address", "")
	assert.Error(t, err)
}
