// Package mockserver is a local stand-in for the UltraPay generation backend.
// It prices each provider, answers unpaid /generate calls with an x402 v1
// challenge and verifies X-PAYMENT headers offline. Nothing is settled on chain.
package mockserver

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	x402http "github.com/ultravioletadao/ultrapayx402/go/http"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm/exact/facilitator"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

const (
	serviceName          = "ultrapay-backend (mock)"
	defaultTimeoutSecond = 300
)

// Config configures the mock backend
type Config struct {
	// Network payments are requested on, e.g. "base-sepolia"
	Network string

	// PayTo receives the payments
	PayTo string

	// FacilitatorURL is advertised in the legacy x402 block of the challenge
	FacilitatorURL string

	// Providers defaults to DefaultProviders
	Providers []x402http.Provider

	// MaxTimeoutSeconds is the authorization lifetime requested; defaults to 300
	MaxTimeoutSeconds int

	// Now defaults to time.Now
	Now func() time.Time
}

// Server is the mock generation backend
type Server struct {
	config   Config
	asset    evm.AssetInfo
	verifier *facilitator.ExactEvmScheme
	engine   *gin.Engine
	served   atomic.Uint64
}

// New creates a Server. The network must have a default USDC deployment.
func New(config Config) (*Server, error) {
	asset, ok := evm.DefaultAsset(config.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %s", x402.ErrUnsupportedNetwork, config.Network)
	}
	if !evm.IsValidAddress(config.PayTo) {
		return nil, fmt.Errorf("invalid payTo address %q", config.PayTo)
	}
	if len(config.Providers) == 0 {
		config.Providers = DefaultProviders
	}
	if config.MaxTimeoutSeconds <= 0 {
		config.MaxTimeoutSeconds = defaultTimeoutSecond
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	s := &Server{
		config:   config,
		asset:    asset,
		verifier: facilitator.NewExactEvmScheme(&facilitator.ExactEvmSchemeConfig{Now: config.Now}),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())
	r.GET("/health", s.health)
	r.GET("/providers", s.providers)
	r.GET("/pricing", s.pricing)
	r.POST("/generate", s.generate)
	s.engine = r

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until the server fails
func (s *Server) Run(addr string) error {
	logx.Infof("mock backend listening on %s, payments on %s to %s", addr, s.config.Network, s.config.PayTo)
	return s.engine.Run(addr)
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logx.WithContext(c.Request.Context()).WithDuration(time.Since(start)).
			Infof("%s %s %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, x402http.Health{
		Status:    "ok",
		Service:   serviceName,
		Timestamp: s.config.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": s.config.Providers})
}

func (s *Server) pricing(c *gin.Context) {
	c.JSON(http.StatusOK, pricing(s.config.Providers))
}

func (s *Server) generate(c *gin.Context) {
	var req x402http.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "prompt is required"})
		return
	}

	provider, ok := findProvider(s.config.Providers, req.Provider, req.Type)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider: " + req.Provider})
		return
	}

	requirements, err := s.requirements(c.Request, provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	header := c.GetHeader(x402.PaymentHeader)
	if header == "" {
		s.paymentRequired(c, provider, requirements, "X-PAYMENT header is required")
		return
	}

	payload, err := types.DecodePaymentHeader(header)
	if err != nil {
		logx.WithContext(c.Request.Context()).Errorf("undecodable payment header: %v", err)
		s.paymentRequired(c, provider, requirements, "invalid payment header")
		return
	}

	matched, ok := types.FindMatchingRequirements(*payload, []types.PaymentRequirements{requirements})
	if !ok {
		s.paymentRequired(c, provider, requirements, "no matching payment requirement")
		return
	}

	settlement, err := s.verifier.Settle(c.Request.Context(), *payload, matched)
	if err != nil {
		logx.WithContext(c.Request.Context()).Errorf("payment rejected: %v", err)
		s.paymentRequired(c, provider, requirements, facilitator.Reason(err))
		return
	}

	encoded, err := types.EncodeSettlement(*settlement)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header(x402.PaymentResponseHeader, encoded)

	mediaType := provider.Type
	c.JSON(http.StatusOK, x402http.GenerateResponse{
		Success:       true,
		TransactionID: settlement.Transaction,
		MediaURL:      s.mediaURL(mediaType),
		Type:          mediaType,
		Provider:      provider.ID,
		ProviderName:  provider.Name,
		Price:         provider.Price,
	})
}

func (s *Server) mediaURL(mediaType x402http.MediaType) string {
	urls := imageURLs
	if mediaType == x402http.MediaVideo {
		urls = videoURLs
	}
	n := s.served.Add(1)
	return urls[int(n-1)%len(urls)]
}

// requirements prices provider in atomic units of the network's USDC
func (s *Server) requirements(r *http.Request, provider x402http.Provider) (types.PaymentRequirements, error) {
	amount, err := evm.ParseAmount(strconv.FormatFloat(provider.Price, 'f', -1, 64), s.asset.Decimals)
	if err != nil {
		return types.PaymentRequirements{}, fmt.Errorf("invalid price for %s: %w", provider.ID, err)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return types.PaymentRequirements{
		Scheme:            evm.SchemeExact,
		Network:           s.config.Network,
		MaxAmountRequired: amount.String(),
		Resource:          scheme + "://" + r.Host + r.URL.Path,
		Description:       fmt.Sprintf("%s %s generation", provider.Name, provider.Type),
		MimeType:          "application/json",
		PayTo:             s.config.PayTo,
		MaxTimeoutSeconds: s.config.MaxTimeoutSeconds,
		Asset:             s.asset.Address,
		Extra: map[string]interface{}{
			"name":    s.asset.Name,
			"version": s.asset.Version,
		},
	}, nil
}

func (s *Server) paymentRequired(c *gin.Context, provider x402http.Provider, requirements types.PaymentRequirements, reason string) {
	price := strconv.FormatFloat(provider.Price, 'f', -1, 64)
	c.JSON(http.StatusPaymentRequired, types.PaymentRequired{
		X402Version:  x402.ProtocolVersion,
		Error:        reason,
		Accepts:      []types.PaymentRequirements{requirements},
		Price:        provider.Price,
		Currency:     "USD",
		Provider:     provider.ID,
		ProviderName: provider.Name,
		X402: map[string]string{
			"X-Payment-Required":  "true",
			"X-Payment-Amount":    price,
			"X-Payment-Currency":  "USD",
			"X-Payment-Recipient": s.config.PayTo,
			"X-Facilitator-URL":   s.config.FacilitatorURL,
		},
	})
}
