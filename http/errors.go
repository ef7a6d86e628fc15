package http

import (
	"fmt"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

// PaymentRequiredError is returned when the server answers 402. Challenge is
// nil when the body could not be parsed, in which case Err says why.
type PaymentRequiredError struct {
	Challenge *types.PaymentRequired
	Err       error

	// Paid is set when the 402 answered a request that carried X-PAYMENT,
	// e.g. the retry made by a PaymentTransport
	Paid bool
}

func (e *PaymentRequiredError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("payment required: %v", e.Err)
	case e.Challenge != nil && e.Challenge.Error != "":
		return "payment required: " + e.Challenge.Error
	default:
		return "payment required"
	}
}

// Is matches x402.ErrPaymentRequired
func (e *PaymentRequiredError) Is(target error) bool {
	return target == x402.ErrPaymentRequired
}

func (e *PaymentRequiredError) Unwrap() error {
	return e.Err
}

// PaymentRejectedError is returned when the paid retry is answered with
// another 402. It is never retried.
type PaymentRejectedError struct {
	Retry *PaymentRequiredError
}

func (e *PaymentRejectedError) Error() string {
	if e.Retry != nil && e.Retry.Challenge != nil && e.Retry.Challenge.Error != "" {
		return fmt.Sprintf("%v: %s", x402.ErrPaymentRejected, e.Retry.Challenge.Error)
	}
	return x402.ErrPaymentRejected.Error()
}

// Is matches x402.ErrPaymentRejected
func (e *PaymentRejectedError) Is(target error) bool {
	return target == x402.ErrPaymentRejected
}

func (e *PaymentRejectedError) Unwrap() error {
	if e.Retry == nil {
		return nil
	}
	return e.Retry
}

// APIError is any other non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// Is matches x402.ErrAPI
func (e *APIError) Is(target error) bool {
	return target == x402.ErrAPI
}
