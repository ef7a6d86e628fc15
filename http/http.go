// Package http is the client side of the UltraPay generation API: typed
// calls for the backend endpoints and the x402 v1 payment handshake, either
// as a single-retry orchestration (GenerateWithPayment) or as a RoundTripper
// for arbitrary requests.
package http

import (
	"net/http"
)

// WrapClient returns a copy of client whose transport pays 402 challenges through payer
func WrapClient(client *http.Client, payer Payer) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	wrapped := *client
	wrapped.Transport = &PaymentTransport{
		Base:  client.Transport,
		Payer: payer,
	}
	return &wrapped
}

// NewPayingClient creates a Client whose requests pay 402 challenges in the
// transport. Generate reports a 402 on the paid retry as *PaymentRequiredError
// with Paid set; GenerateWithPayment on this client pays at most once per call
// and reports that case as *PaymentRejectedError.
func NewPayingClient(baseURL string, payer Payer, opts ...ClientOption) *Client {
	c := NewClient(baseURL, opts...)
	c.httpClient = WrapClient(c.httpClient, payer)
	return c
}
