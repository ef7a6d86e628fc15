package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

// MediaType is the kind of content a provider generates
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Provider is a generation backend and its per-call price in USD
type Provider struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        MediaType `json:"type"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Model       string    `json:"model"`
}

// PriceRange summarizes the providers of one media type
type PriceRange struct {
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Providers []Provider `json:"providers"`
}

// Pricing is the /pricing response
type Pricing struct {
	Currency  string             `json:"currency"`
	Providers map[string]float64 `json:"providers"`
	ByType    struct {
		Image PriceRange `json:"image"`
		Video PriceRange `json:"video"`
	} `json:"byType"`
}

// Health is the /health response
type Health struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// GenerateRequest asks a provider for an image or video
type GenerateRequest struct {
	Prompt   string    `json:"prompt"`
	Type     MediaType `json:"type"`
	Provider string    `json:"provider,omitempty"`
}

// GenerateResponse is a completed generation. Settlement is filled from the
// X-PAYMENT-RESPONSE header when the server sends one.
type GenerateResponse struct {
	Success       bool      `json:"success"`
	TransactionID string    `json:"transactionId"`
	MediaURL      string    `json:"mediaUrl"`
	Type          MediaType `json:"type"`
	Provider      string    `json:"provider"`
	ProviderName  string    `json:"providerName"`
	Price         float64   `json:"price"`

	Settlement *types.SettleResponse `json:"-"`
}

// Client talks to the UltraPay generation backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout of the underlying HTTP client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		clone := *c.httpClient
		clone.Timeout = timeout
		c.httpClient = &clone
	}
}

// NewClient creates a Client for the backend at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /health
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Providers calls GET /providers
func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	var out struct {
		Providers []Provider `json:"providers"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/providers", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

// Pricing calls GET /pricing
func (c *Client) Pricing(ctx context.Context) (*Pricing, error) {
	var out Pricing
	if _, err := c.do(ctx, http.MethodGet, "/pricing", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate calls POST /generate. paymentHeader is sent as X-PAYMENT when set.
// A 402 answer is returned as *PaymentRequiredError.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, paymentHeader string) (*GenerateResponse, error) {
	var out GenerateResponse
	resp, err := c.do(ctx, http.MethodPost, "/generate", req, paymentHeader, &out)
	if err != nil {
		return nil, err
	}

	settlement, err := Settlement(resp)
	if err != nil {
		logx.WithContext(ctx).Errorf("ignoring undecodable %s header: %v", x402.PaymentResponseHeader, err)
	}
	out.Settlement = settlement
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, paymentHeader string, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if paymentHeader != "" {
		req.Header.Set(x402.PaymentHeader, paymentHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		required := ParsePaymentRequired(data)
		required.Paid = resp.Request != nil && resp.Request.Header.Get(x402.PaymentHeader) != ""
		return resp, required
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp, fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return resp, nil
}

// ParsePaymentRequired turns a 402 body into a *PaymentRequiredError
func ParsePaymentRequired(body []byte) *PaymentRequiredError {
	challenge, err := types.ToPaymentRequired(body)
	if err != nil {
		return &PaymentRequiredError{Err: err}
	}
	return &PaymentRequiredError{Challenge: challenge}
}

// errorMessage reads the server message from a JSON body ("message" first, then "error")
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "unknown error"
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	default:
		return http.StatusText(status)
	}
}
