package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
)

// EncodePaymentHeader converts a PaymentPayload to base64-encoded JSON
func EncodePaymentHeader(payload PaymentPayload) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payloadJSON), nil
}

// DecodePaymentHeader converts a base64-encoded JSON header value to a PaymentPayload.
// Errors wrap x402.ErrMalformedHeader.
func DecodePaymentHeader(encoded string) (*PaymentPayload, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", x402.ErrMalformedHeader, err)
	}

	payload, err := ToPaymentPayload(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrMalformedHeader, err)
	}
	return payload, nil
}

// EncodeSettlement converts a SettleResponse to base64-encoded JSON
func EncodeSettlement(settlement SettleResponse) (string, error) {
	settlementJSON, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(settlementJSON), nil
}

// DecodeSettlement converts a base64-encoded JSON header value to a SettleResponse
func DecodeSettlement(encoded string) (*SettleResponse, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	var settlement SettleResponse
	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}
	return &settlement, nil
}
