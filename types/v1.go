package types

import "encoding/json"

// PaymentRequirements is one accepted payment option of a 402 challenge
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	Resource          string                 `json:"resource"`
	Description       string                 `json:"description,omitempty"`
	MimeType          string                 `json:"mimeType,omitempty"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Asset             string                 `json:"asset"`
	OutputSchema      json.RawMessage        `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// TokenName returns extra.name when the server supplied it
func (r PaymentRequirements) TokenName() (string, bool) {
	return r.extraString("name")
}

// TokenVersion returns extra.version when the server supplied it
func (r PaymentRequirements) TokenVersion() (string, bool) {
	return r.extraString("version")
}

func (r PaymentRequirements) extraString(key string) (string, bool) {
	if r.Extra == nil {
		return "", false
	}
	v, ok := r.Extra[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// PaymentRequired is the body of a 402 Payment Required response.
//
// Besides the x402 fields the generation backend adds its own pricing
// summary (price, currency, provider) next to the accepted options.
type PaymentRequired struct {
	X402Version  int                   `json:"x402Version"`
	Error        string                `json:"error,omitempty"`
	Accepts      []PaymentRequirements `json:"accepts"`
	Price        float64               `json:"price,omitempty"`
	Currency     string                `json:"currency,omitempty"`
	Provider     string                `json:"provider,omitempty"`
	ProviderName string                `json:"providerName,omitempty"`
	X402         map[string]string     `json:"x402,omitempty"`
}

// PaymentPayload is the envelope sent back in the X-PAYMENT header.
// Scheme and network sit at the top level in v1.
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Payload     map[string]interface{} `json:"payload"`
}

// SettleResponse is decoded from the X-PAYMENT-RESPONSE header
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
}

// VerifyResponse is the outcome of verifying a payment payload
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}
