package evm

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmountFixed(t *testing.T) {
	tests := []struct {
		amount   *big.Int
		decimals int
		want     string
	}{
		{big.NewInt(150000), 6, "0.150000"},
		{big.NewInt(100000), 6, "0.100000"},
		{big.NewInt(1200000), 6, "1.200000"},
		{big.NewInt(0), 6, "0.000000"},
		{nil, 6, "0.000000"},
		{big.NewInt(42), 0, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmountFixed(tt.amount, tt.decimals))
		})
	}
}

func TestFormatAndParseAmount(t *testing.T) {
	assert.Equal(t, "0.15", FormatAmount(big.NewInt(150000), 6))
	assert.Equal(t, "2", FormatAmount(big.NewInt(2000000), 6))

	amount, err := ParseAmount("0.15", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), amount.Int64())

	_, err = ParseAmount("1.2.3", 6)
	assert.Error(t, err)
}

func TestParseAtomicAmount(t *testing.T) {
	v, err := ParseAtomicAmount("150000")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), v.Int64())

	for _, bad := range []string{"", "-1", "0.15", "abc"} {
		_, err := ParseAtomicAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestCreateValidityWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	after, before := CreateValidityWindow(now, 300)
	assert.Equal(t, int64(1_700_000_000), after.Int64())
	assert.Equal(t, int64(300), new(big.Int).Sub(before, after).Int64())

	after, before = CreateValidityWindow(now, 0)
	assert.Equal(t, int64(DefaultValidityPeriod), new(big.Int).Sub(before, after).Int64())
}

func TestCreateNonce(t *testing.T) {
	a, err := CreateNonce()
	require.NoError(t, err)
	b, err := CreateNonce()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := HexToBytes(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestAddressHelpers(t *testing.T) {
	assert.True(t, IsValidAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"))
	assert.False(t, IsValidAddress("0x1234"))
	assert.Equal(t, "0xabcdef", NormalizeAddress(" 0xABCDEF "))
	assert.Equal(t, "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		ChecksumAddress("0x036cbd53842c5426634e7929541ec2318f3dcf7e"))
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}
