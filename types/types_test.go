package types

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
)

const sampleChallenge = `{
	"x402Version": 1,
	"error": "X-PAYMENT header is required",
	"accepts": [{
		"scheme": "exact",
		"network": "base-sepolia",
		"maxAmountRequired": "150000",
		"resource": "http://localhost:3000/generate",
		"description": "SD3.5 image generation",
		"mimeType": "application/json",
		"payTo": "0x34033041a5944B8F10f8E4D8496Bfb84f1A293A8",
		"maxTimeoutSeconds": 300,
		"asset": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		"extra": {"name": "USDC", "version": "2"}
	}],
	"price": 0.15,
	"currency": "USD",
	"provider": "sd35",
	"providerName": "SD3.5"
}`

func TestToPaymentRequired(t *testing.T) {
	required, err := ToPaymentRequired([]byte(sampleChallenge))
	require.NoError(t, err)

	assert.Equal(t, 1, required.X402Version)
	assert.Equal(t, "sd35", required.Provider)
	require.Len(t, required.Accepts, 1)

	accept := required.Accepts[0]
	assert.Equal(t, "exact", accept.Scheme)
	assert.Equal(t, "base-sepolia", accept.Network)
	assert.Equal(t, "150000", accept.MaxAmountRequired)
	assert.Equal(t, 300, accept.MaxTimeoutSeconds)

	name, ok := accept.TokenName()
	assert.True(t, ok)
	assert.Equal(t, "USDC", name)
	version, ok := accept.TokenVersion()
	assert.True(t, ok)
	assert.Equal(t, "2", version)
}

func TestToPaymentRequired_PricingOnlyBody(t *testing.T) {
	body := `{"error":"Payment required","price":0.1,"currency":"USD","provider":"nanobanana","x402":{"X-Payment-Required":"true"}}`

	required, err := ToPaymentRequired([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, required.Accepts)
	assert.Equal(t, "true", required.X402["X-Payment-Required"])
}

func TestValidatePaymentRequired(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid challenge", body: sampleChallenge},
		{name: "empty object", body: `{}`},
		{
			name:    "decimal amount",
			body:    `{"accepts":[{"scheme":"exact","network":"base","maxAmountRequired":"0.15","payTo":"0x1","asset":"0x2"}]}`,
			wantErr: true,
		},
		{
			name:    "missing payTo",
			body:    `{"accepts":[{"scheme":"exact","network":"base","maxAmountRequired":"15","asset":"0x2"}]}`,
			wantErr: true,
		},
		{
			name:    "accepts not an array",
			body:    `{"accepts":"exact"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `payment required`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePaymentRequired([]byte(tt.body))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, x402.ErrInvalidRequirements))
		})
	}
}

func TestPaymentHeaderEncoding(t *testing.T) {
	payload := PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "base-sepolia",
		Payload: map[string]interface{}{
			"signature": "0xsig",
			"authorization": map[string]interface{}{
				"from":  "0xfrom",
				"value": "150000",
			},
		},
	}

	encoded, err := EncodePaymentHeader(payload)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, float64(1), wire["x402Version"])
	assert.Equal(t, "exact", wire["scheme"])
	assert.Equal(t, "base-sepolia", wire["network"])

	decoded, err := DecodePaymentHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload.Scheme, decoded.Scheme)
	assert.Equal(t, "0xsig", decoded.Payload["signature"])

	_, err = DecodePaymentHeader("%%%")
	assert.ErrorIs(t, err, x402.ErrMalformedHeader)

	_, err = DecodePaymentHeader(base64.StdEncoding.EncodeToString([]byte(`{"scheme":"exact"}`)))
	assert.ErrorIs(t, err, x402.ErrMalformedHeader)
}

func TestFindMatchingRequirements(t *testing.T) {
	accepts := []PaymentRequirements{
		{Scheme: "exact", Network: "base", MaxAmountRequired: "1"},
		{Scheme: "exact", Network: "base-sepolia", MaxAmountRequired: "2"},
	}

	req, ok := FindMatchingRequirements(PaymentPayload{Scheme: "exact", Network: "Base-Sepolia"}, accepts)
	require.True(t, ok)
	assert.Equal(t, "2", req.MaxAmountRequired)

	_, ok = FindMatchingRequirements(PaymentPayload{Scheme: "upto", Network: "base"}, accepts)
	assert.False(t, ok)
}

func TestDetectVersion(t *testing.T) {
	version, err := DetectVersion([]byte(`{"x402Version":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	_, err = DetectVersion([]byte(`{"x402Version":0}`))
	assert.Error(t, err)
}
