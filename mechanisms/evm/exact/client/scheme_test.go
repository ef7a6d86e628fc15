package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

// keySigner signs with signKey while claiming to be address
type keySigner struct {
	address string
	signKey *ecdsa.PrivateKey
	err     error
}

func newKeySigner(t *testing.T) *keySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &keySigner{address: crypto.PubkeyToAddress(key.PublicKey).Hex(), signKey: key}
}

func (s *keySigner) Address() string { return s.address }

func (s *keySigner) SignTypedData(ctx context.Context, domain evm.TypedDataDomain, types map[string][]evm.TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	hash, err := evm.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, s.signKey)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func (s *keySigner) ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error) {
	return nil, errors.New("not implemented")
}

func testRequirements() types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: "150000",
		Resource:          "/generate",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		MaxTimeoutSeconds: 300,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	}
}

func TestPrepareAuthorization(t *testing.T) {
	signer := newKeySigner(t)
	now := time.Unix(1_700_000_000, 0)
	scheme := NewExactEvmScheme(signer, WithClock(func() time.Time { return now }))

	prepared, err := scheme.PrepareAuthorization(testRequirements())
	require.NoError(t, err)

	auth := prepared.Authorization
	assert.Equal(t, signer.Address(), auth.From)
	assert.Equal(t, "150000", auth.Value)
	assert.Equal(t, "1700000000", auth.ValidAfter)
	assert.Equal(t, "1700000300", auth.ValidBefore)
	assert.Equal(t, evm.DefaultTokenName, prepared.Domain.Name)
	assert.Equal(t, evm.DefaultTokenVersion, prepared.Domain.Version)
	assert.Equal(t, int64(84532), prepared.Domain.ChainID.Int64())
	assert.Equal(t, testRequirements().Asset, prepared.Domain.VerifyingContract)

	fields := prepared.Types[evm.PrimaryTypeTransferWithAuthorization]
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"from", "to", "value", "validAfter", "validBefore", "nonce"}, names)
}

func TestPrepareAuthorizationValidityWindow(t *testing.T) {
	tests := []struct {
		name    string
		timeout int
		want    int64
	}{
		{"explicit timeout", 300, 300},
		{"default timeout", 0, evm.DefaultValidityPeriod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequirements()
			req.MaxTimeoutSeconds = tt.timeout

			prepared, err := NewExactEvmScheme(newKeySigner(t)).PrepareAuthorization(req)
			require.NoError(t, err)

			after, _ := new(big.Int).SetString(prepared.Authorization.ValidAfter, 10)
			before, _ := new(big.Int).SetString(prepared.Authorization.ValidBefore, 10)
			assert.Equal(t, tt.want, new(big.Int).Sub(before, after).Int64())
		})
	}
}

func TestPrepareAuthorizationUsesExtra(t *testing.T) {
	req := testRequirements()
	req.Extra = map[string]interface{}{"name": "USDC", "version": "2"}

	prepared, err := NewExactEvmScheme(newKeySigner(t)).PrepareAuthorization(req)
	require.NoError(t, err)
	assert.Equal(t, "USDC", prepared.Domain.Name)
}

func TestPrepareAuthorizationErrors(t *testing.T) {
	scheme := NewExactEvmScheme(newKeySigner(t))

	req := testRequirements()
	req.Network = "unknown-chain"
	_, err := scheme.PrepareAuthorization(req)
	assert.ErrorIs(t, err, x402.ErrUnsupportedNetwork)

	req = testRequirements()
	req.MaxAmountRequired = "0.15"
	_, err = scheme.PrepareAuthorization(req)
	assert.ErrorIs(t, err, x402.ErrInvalidAmount)

	failing := NewExactEvmScheme(newKeySigner(t), WithNonceSource(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))
	_, err = failing.PrepareAuthorization(testRequirements())
	assert.EqualError(t, err, "entropy exhausted")
}

func TestCreatePaymentPayloadRecoversSigner(t *testing.T) {
	signer := newKeySigner(t)
	scheme := NewExactEvmScheme(signer)

	payload, err := scheme.CreatePaymentPayload(context.Background(), testRequirements())
	require.NoError(t, err)
	assert.Equal(t, 1, payload.X402Version)
	assert.Equal(t, "exact", payload.Scheme)
	assert.Equal(t, "base-sepolia", payload.Network)

	signed, err := evm.PayloadFromMap(payload.Payload)
	require.NoError(t, err)

	hash, err := evm.HashEIP3009Authorization(signed.Authorization, big.NewInt(84532),
		testRequirements().Asset, evm.DefaultTokenName, evm.DefaultTokenVersion)
	require.NoError(t, err)
	sig, err := evm.HexToBytes(signed.Signature)
	require.NoError(t, err)

	recovered, err := evm.RecoverEOAAddress(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered.Hex())
}

func TestNoncesAreUnique(t *testing.T) {
	scheme := NewExactEvmScheme(newKeySigner(t))

	a, err := scheme.CreatePaymentPayload(context.Background(), testRequirements())
	require.NoError(t, err)
	b, err := scheme.CreatePaymentPayload(context.Background(), testRequirements())
	require.NoError(t, err)

	pa, _ := evm.PayloadFromMap(a.Payload)
	pb, _ := evm.PayloadFromMap(b.Payload)
	assert.NotEqual(t, pa.Authorization.Nonce, pb.Authorization.Nonce)
}

func TestSignAuthorizationMismatch(t *testing.T) {
	signer := newKeySigner(t)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer.signKey = other

	_, err = NewExactEvmScheme(signer).CreatePaymentPayload(context.Background(), testRequirements())
	require.Error(t, err)
	assert.ErrorIs(t, err, x402.ErrSignatureMismatch)

	var mismatch *SignatureMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, signer.Address(), mismatch.Expected)
	assert.Equal(t, crypto.PubkeyToAddress(other.PublicKey).Hex(), mismatch.Recovered)
}

func TestSignAuthorizationWalletError(t *testing.T) {
	signer := newKeySigner(t)
	signer.err = x402.ErrUserRejected

	_, err := NewExactEvmScheme(signer).CreatePaymentPayload(context.Background(), testRequirements())
	assert.ErrorIs(t, err, x402.ErrUserRejected)
}
