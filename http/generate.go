package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

// Payer turns a 402 challenge into an X-PAYMENT header value.
// *payment.Service implements it.
type Payer interface {
	IsConnected() bool
	ExecutePayment(ctx context.Context, challenge *types.PaymentRequired) (string, error)
}

// GenerateWithPayment calls Generate and, when the server asks for payment,
// pays through payer and retries exactly once. A 402 on the paid retry is
// returned as *PaymentRejectedError. On a client whose transport already
// paid (NewPayingClient) the first attempt is that retry, so payer is not
// asked again.
func (c *Client) GenerateWithPayment(ctx context.Context, req GenerateRequest, payer Payer) (*GenerateResponse, error) {
	result, err := c.Generate(ctx, req, "")
	if err == nil {
		return result, nil
	}

	var required *PaymentRequiredError
	if !errors.As(err, &required) {
		return nil, err
	}
	if required.Paid {
		logx.WithContext(ctx).Errorf("paid request was answered with 402: %v", required)
		return nil, &PaymentRejectedError{Retry: required}
	}
	if required.Challenge == nil {
		return nil, err
	}

	challenge := required.Challenge
	if payer == nil || !payer.IsConnected() {
		return nil, fmt.Errorf("%w: %s", x402.ErrWalletNotConnected, describeChallenge(challenge))
	}

	logger := logx.WithContext(ctx)
	logger.Infof("payment required for %s: %s", challenge.Provider, describeChallenge(challenge))

	header, err := payer.ExecutePayment(ctx, challenge)
	if err != nil {
		return nil, err
	}

	result, err = c.Generate(ctx, req, header)
	if err != nil {
		var again *PaymentRequiredError
		if errors.As(err, &again) {
			logger.Errorf("paid retry was answered with 402: %v", again)
			return nil, &PaymentRejectedError{Retry: again}
		}
		return nil, err
	}
	return result, nil
}

func describeChallenge(challenge *types.PaymentRequired) string {
	if len(challenge.Accepts) > 0 {
		accept := challenge.Accepts[0]
		return fmt.Sprintf("%s atomic units on %s", accept.MaxAmountRequired, accept.Network)
	}
	if challenge.Price > 0 {
		return fmt.Sprintf("%.2f %s", challenge.Price, challenge.Currency)
	}
	return "payment required"
}
