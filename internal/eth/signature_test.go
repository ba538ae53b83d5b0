package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/renown/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignTextRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignText(key, []byte("header.payload"))
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	got, err := RecoverText([]byte("header.payload"), sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	normalized, err := NormalizeRecoveryID(sig)
	require.NoError(t, err)
	assert.LessOrEqual(t, normalized[64], byte(1))
	assert.Equal(t, sig[:64], normalized[:64])

	got, err = RecoverText([]byte("header.payload"), normalized)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = RecoverText([]byte("other"), normalized)
	require.NoError(t, err)
	assert.NotEqual(t, want, got)
}

func TestNormalizeRecoveryIDLength(t *testing.T) {
	_, err := NormalizeRecoveryID(make([]byte, 64))
	assert.ErrorIs(t, err, core.ErrInvalidSignatureLength)
}

func TestRecoverRejectsBadRecoveryID(t *testing.T) {
	sig := make([]byte, SignatureLength)
	sig[64] = 5
	_, err := RecoverText([]byte("x"), sig)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}
