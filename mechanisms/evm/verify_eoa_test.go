package evm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEOASignature(t *testing.T) {
	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	testHash := crypto.Keccak256([]byte("test message"))

	sig, err := crypto.Sign(testHash, privateKey)
	require.NoError(t, err)
	sig[64] += 27

	tests := []struct {
		name            string
		hash            []byte
		signature       func() []byte
		expectedAddress common.Address
		want            bool
		wantErr         bool
	}{
		{
			name:            "valid EOA signature",
			hash:            testHash,
			signature:       func() []byte { return sig },
			expectedAddress: address,
			want:            true,
		},
		{
			name:            "short signature",
			hash:            testHash,
			signature:       func() []byte { return make([]byte, 64) },
			expectedAddress: address,
			wantErr:         true,
		},
		{
			name:            "long signature",
			hash:            testHash,
			signature:       func() []byte { return make([]byte, 66) },
			expectedAddress: address,
			wantErr:         true,
		},
		{
			name:            "other address",
			hash:            testHash,
			signature:       func() []byte { return sig },
			expectedAddress: common.HexToAddress("0x0000000000000000000000000000000000000001"),
			want:            false,
		},
		{
			name: "signed a different hash",
			hash: testHash,
			signature: func() []byte {
				other, _ := crypto.Sign(crypto.Keccak256([]byte("other")), privateKey)
				other[64] += 27
				return other
			},
			expectedAddress: address,
			want:            false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyEOASignature(tt.hash, tt.signature(), tt.expectedAddress)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecoverEOAAddress(t *testing.T) {
	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	hash := crypto.Keccak256([]byte("recover"))

	raw, err := crypto.Sign(hash, privateKey)
	require.NoError(t, err)

	t.Run("raw v", func(t *testing.T) {
		got, err := RecoverEOAAddress(hash, raw)
		require.NoError(t, err)
		assert.Equal(t, address, got)
	})

	t.Run("ethereum v leaves input untouched", func(t *testing.T) {
		sig := append([]byte(nil), raw...)
		sig[64] += 27
		got, err := RecoverEOAAddress(hash, sig)
		require.NoError(t, err)
		assert.Equal(t, address, got)
		assert.GreaterOrEqual(t, sig[64], byte(27))
	})

	t.Run("bad length", func(t *testing.T) {
		_, err := RecoverEOAAddress(hash, raw[:10])
		assert.ErrorIs(t, err, ErrInvalidSignatureLength)
	})
}
