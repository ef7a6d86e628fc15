package types

import (
	"encoding/json"
	"fmt"
)

// DetectVersion reads x402Version from a JSON document
func DetectVersion(data []byte) (int, error) {
	var probe struct {
		X402Version int `json:"x402Version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to read x402Version: %w", err)
	}
	if probe.X402Version < 1 {
		return 0, fmt.Errorf("missing or invalid x402Version: %d", probe.X402Version)
	}
	return probe.X402Version, nil
}

// ToPaymentRequired unmarshals a 402 response body.
// The body is validated against the challenge schema first so that a malformed
// accepts entry is reported instead of silently zero-filled.
func ToPaymentRequired(data []byte) (*PaymentRequired, error) {
	if err := ValidatePaymentRequired(data); err != nil {
		return nil, err
	}
	var required PaymentRequired
	if err := json.Unmarshal(data, &required); err != nil {
		return nil, fmt.Errorf("failed to parse payment required body: %w", err)
	}
	return &required, nil
}

// ToPaymentPayload unmarshals a decoded X-PAYMENT document
func ToPaymentPayload(data []byte) (*PaymentPayload, error) {
	if _, err := DetectVersion(data); err != nil {
		return nil, err
	}
	var payload PaymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
