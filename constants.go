package x402

// Version constants
const (
	// Version is the client version
	Version = "1.0.0"

	// ProtocolVersion is the x402 protocol version spoken by the generation backend
	ProtocolVersion = 1
)

// Header names used by the x402 v1 HTTP transport
const (
	// PaymentHeader carries the base64 encoded payment payload on the retried request
	PaymentHeader = "X-PAYMENT"

	// PaymentResponseHeader carries the base64 encoded settlement result
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"
)
