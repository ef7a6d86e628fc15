package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

// errBodyNotReplayable is returned when a paid retry needs the request body
// again but the request has no GetBody.
var errBodyNotReplayable = errors.New("request body cannot be replayed for the paid retry")

// PaymentTransport is a RoundTripper that answers a 402 by paying through
// Payer and retrying the request once with X-PAYMENT set. The response to
// the retry is returned as is, even when it is another 402. Requests that
// already carry X-PAYMENT are never paid again.
type PaymentTransport struct {
	// Base is the underlying RoundTripper, http.DefaultTransport when nil
	Base http.RoundTripper

	// Payer produces the payment header
	Payer Payer

	// OnSettlement is called with the decoded X-PAYMENT-RESPONSE of a paid retry
	OnSettlement func(*types.SettleResponse)
}

func (t *PaymentTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

// RoundTrip implements http.RoundTripper
func (t *PaymentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req.Clone(req.Context()))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired || req.Header.Get(x402.PaymentHeader) != "" {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read 402 response: %w", err)
	}
	required := ParsePaymentRequired(body)
	if required.Challenge == nil {
		return nil, required
	}

	if t.Payer == nil || !t.Payer.IsConnected() {
		return nil, fmt.Errorf("%w: %s", x402.ErrWalletNotConnected, describeChallenge(required.Challenge))
	}

	ctx := req.Context()
	header, err := t.Payer.ExecutePayment(ctx, required.Challenge)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errBodyNotReplayable
		}
		if retry.Body, err = req.GetBody(); err != nil {
			return nil, fmt.Errorf("failed to replay request body: %w", err)
		}
	}
	retry.Header.Set(x402.PaymentHeader, header)

	resp, err = t.base().RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	resp.Request = retry

	if t.OnSettlement != nil {
		settlement, err := Settlement(resp)
		if err != nil {
			logx.WithContext(ctx).Errorf("ignoring undecodable %s header: %v", x402.PaymentResponseHeader, err)
		} else if settlement != nil {
			t.OnSettlement(settlement)
		}
	}
	return resp, nil
}

// Settlement decodes the X-PAYMENT-RESPONSE header of resp. It returns nil
// without error when the header is absent.
func Settlement(resp *http.Response) (*types.SettleResponse, error) {
	if resp == nil {
		return nil, nil
	}
	header := resp.Header.Get(x402.PaymentResponseHeader)
	if header == "" {
		return nil, nil
	}
	return types.DecodeSettlement(header)
}
