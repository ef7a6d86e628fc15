package facilitator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

// ExactEvmSchemeConfig holds configuration for the offline ExactEvmScheme verifier
type ExactEvmSchemeConfig struct {
	// Now returns the current time; defaults to time.Now
	Now func() time.Time

	// TransactionID returns the identifier reported for a settled payment;
	// defaults to a random UUID
	TransactionID func() string
}

// ExactEvmScheme verifies x402 v1 exact payments without touching a chain.
// Settlement only records the nonce so the same authorization cannot be paid twice.
type ExactEvmScheme struct {
	config ExactEvmSchemeConfig
	nonces sync.Map
}

// NewExactEvmScheme creates a new ExactEvmScheme
func NewExactEvmScheme(config *ExactEvmSchemeConfig) *ExactEvmScheme {
	cfg := ExactEvmSchemeConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TransactionID == nil {
		cfg.TransactionID = uuid.NewString
	}
	return &ExactEvmScheme{config: cfg}
}

// Scheme returns the scheme identifier
func (f *ExactEvmScheme) Scheme() string {
	return evm.SchemeExact
}

func nonceKey(network, from, nonce string) string {
	return strings.ToLower(network + ":" + from + ":" + nonce)
}

// Verify checks a payment payload against requirements
func (f *ExactEvmScheme) Verify(
	ctx context.Context,
	payload types.PaymentPayload,
	requirements types.PaymentRequirements,
) (*types.VerifyResponse, error) {
	network := requirements.Network

	if payload.X402Version != x402.ProtocolVersion {
		return nil, x402.NewVerifyError("invalid_x402_version", "", network, fmt.Errorf("got version %d", payload.X402Version))
	}

	if payload.Scheme != evm.SchemeExact || payload.Scheme != requirements.Scheme {
		return nil, x402.NewVerifyError("invalid_scheme", "", network, nil)
	}

	if payload.Network != requirements.Network {
		return nil, x402.NewVerifyError("network_mismatch", "", network, nil)
	}

	info, ok := evm.InfoByNetworkName(network)
	if !ok {
		return nil, x402.NewVerifyError("unsupported_network", "", network, x402.ErrUnsupportedNetwork)
	}

	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		return nil, x402.NewVerifyError("invalid_payload", "", network, err)
	}
	auth := evmPayload.Authorization

	if evmPayload.Signature == "" {
		return nil, x402.NewVerifyError("missing_signature", auth.From, network, nil)
	}

	if !strings.EqualFold(auth.To, requirements.PayTo) {
		return nil, x402.NewVerifyError("recipient_mismatch", auth.From, network, nil)
	}

	authValue, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, x402.NewVerifyError("invalid_authorization_value", auth.From, network, nil)
	}

	requiredValue, err := evm.ParseAtomicAmount(requirements.MaxAmountRequired)
	if err != nil {
		return nil, x402.NewVerifyError("invalid_required_amount", auth.From, network, err)
	}

	if authValue.Cmp(requiredValue) < 0 {
		return nil, x402.NewVerifyError("insufficient_amount", auth.From, network, nil)
	}

	validAfter, okAfter := new(big.Int).SetString(auth.ValidAfter, 10)
	validBefore, okBefore := new(big.Int).SetString(auth.ValidBefore, 10)
	if !okAfter || !okBefore {
		return nil, x402.NewVerifyError("invalid_validity_window", auth.From, network, nil)
	}
	now := big.NewInt(f.config.Now().Unix())
	if now.Cmp(validAfter) < 0 {
		return nil, x402.NewVerifyError("authorization_not_yet_valid", auth.From, network, nil)
	}
	if now.Cmp(validBefore) >= 0 {
		return nil, x402.NewVerifyError("authorization_expired", auth.From, network, nil)
	}

	if _, used := f.nonces.Load(nonceKey(network, auth.From, auth.Nonce)); used {
		return nil, x402.NewVerifyError("nonce_already_used", auth.From, network, nil)
	}

	tokenName, ok := requirements.TokenName()
	if !ok {
		tokenName = evm.DefaultTokenName
	}
	tokenVersion, ok := requirements.TokenVersion()
	if !ok {
		tokenVersion = evm.DefaultTokenVersion
	}

	hash, err := evm.HashEIP3009Authorization(auth, info.ChainIDBig(), requirements.Asset, tokenName, tokenVersion)
	if err != nil {
		return nil, x402.NewVerifyError("failed_to_hash_authorization", auth.From, network, err)
	}

	signatureBytes, err := evm.HexToBytes(evmPayload.Signature)
	if err != nil {
		return nil, x402.NewVerifyError("invalid_signature_format", auth.From, network, err)
	}

	valid, err := evm.VerifyEOASignature(hash, signatureBytes, common.HexToAddress(auth.From))
	if err != nil {
		return nil, x402.NewVerifyError("failed_to_verify_signature", auth.From, network, err)
	}
	if !valid {
		return nil, x402.NewVerifyError("invalid_signature", auth.From, network, x402.ErrSignatureMismatch)
	}

	return &types.VerifyResponse{
		IsValid: true,
		Payer:   auth.From,
	}, nil
}

// Settle verifies the payment and consumes its nonce
func (f *ExactEvmScheme) Settle(
	ctx context.Context,
	payload types.PaymentPayload,
	requirements types.PaymentRequirements,
) (*types.SettleResponse, error) {
	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return nil, err
	}

	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		return nil, x402.NewVerifyError("invalid_payload", verifyResp.Payer, requirements.Network, err)
	}

	// two settles racing on the same nonce: only the first wins
	key := nonceKey(requirements.Network, evmPayload.Authorization.From, evmPayload.Authorization.Nonce)
	if _, used := f.nonces.LoadOrStore(key, struct{}{}); used {
		return nil, x402.NewVerifyError("nonce_already_used", verifyResp.Payer, requirements.Network, nil)
	}

	return &types.SettleResponse{
		Success:     true,
		Payer:       verifyResp.Payer,
		Transaction: f.config.TransactionID(),
		Network:     requirements.Network,
	}, nil
}

// Reason extracts the machine readable reason from a verification error
func Reason(err error) string {
	var ve *x402.VerifyError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	if err != nil {
		return "verification_failed"
	}
	return ""
}
