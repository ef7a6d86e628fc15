package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/types"
)

// SignatureMismatchError reports a signature that does not recover to the wallet address
type SignatureMismatchError struct {
	Expected  string
	Recovered string
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("signature is not valid: expected signer %s, recovered %s", e.Expected, e.Recovered)
}

// Is matches x402.ErrSignatureMismatch
func (e *SignatureMismatchError) Is(target error) bool {
	return target == x402.ErrSignatureMismatch
}

// Option configures an ExactEvmScheme
type Option func(*ExactEvmScheme)

// WithClock overrides the time source used for the validity window
func WithClock(now func() time.Time) Option {
	return func(c *ExactEvmScheme) {
		c.now = now
	}
}

// WithNonceSource overrides the nonce generator
func WithNonceSource(nonce func() (string, error)) Option {
	return func(c *ExactEvmScheme) {
		c.nonce = nonce
	}
}

// ExactEvmScheme builds and signs EIP-3009 authorizations for the x402 exact scheme
type ExactEvmScheme struct {
	signer evm.ClientEvmSigner
	now    func() time.Time
	nonce  func() (string, error)
}

// NewExactEvmScheme creates a new ExactEvmScheme
func NewExactEvmScheme(signer evm.ClientEvmSigner, opts ...Option) *ExactEvmScheme {
	c := &ExactEvmScheme{
		signer: signer,
		now:    time.Now,
		nonce:  evm.CreateNonce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scheme returns the scheme identifier
func (c *ExactEvmScheme) Scheme() string {
	return evm.SchemeExact
}

// PreparedAuthorization is an unsigned TransferWithAuthorization with its typed data context
type PreparedAuthorization struct {
	Requirements  types.PaymentRequirements
	Network       evm.NetworkInfo
	Domain        evm.TypedDataDomain
	Types         map[string][]evm.TypedDataField
	Authorization evm.ExactEIP3009Authorization
}

// Message returns the EIP-712 message for the authorization
func (p *PreparedAuthorization) Message() map[string]interface{} {
	return p.Authorization.ToMessage()
}

// Hash returns the EIP-712 digest that the wallet signs
func (p *PreparedAuthorization) Hash() ([]byte, error) {
	return evm.HashTypedData(p.Domain, p.Types, evm.PrimaryTypeTransferWithAuthorization, p.Message())
}

// PrepareAuthorization builds the domain, types and message for requirements.
// The token name and version come from extra, falling back to USD Coin / 2.
func (c *ExactEvmScheme) PrepareAuthorization(requirements types.PaymentRequirements) (*PreparedAuthorization, error) {
	info, ok := evm.InfoByNetworkName(requirements.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %s", x402.ErrUnsupportedNetwork, requirements.Network)
	}

	value, err := RequiredAmount(requirements)
	if err != nil {
		return nil, err
	}

	nonce, err := c.nonce()
	if err != nil {
		return nil, err
	}

	validAfter, validBefore := evm.CreateValidityWindow(c.now(), int64(requirements.MaxTimeoutSeconds))

	tokenName, ok := requirements.TokenName()
	if !ok {
		tokenName = evm.DefaultTokenName
	}
	tokenVersion, ok := requirements.TokenVersion()
	if !ok {
		tokenVersion = evm.DefaultTokenVersion
	}

	return &PreparedAuthorization{
		Requirements: requirements,
		Network:      info,
		Domain:       evm.AuthorizationDomain(info.ChainIDBig(), requirements.Asset, tokenName, tokenVersion),
		Types:        evm.TransferWithAuthorizationTypes(),
		Authorization: evm.ExactEIP3009Authorization{
			From:        c.signer.Address(),
			To:          requirements.PayTo,
			Value:       value.String(),
			ValidAfter:  validAfter.String(),
			ValidBefore: validBefore.String(),
			Nonce:       nonce,
		},
	}, nil
}

// SignAuthorization asks the wallet for a signature and checks that it
// recovers to the authorization's from address before returning it.
func (c *ExactEvmScheme) SignAuthorization(ctx context.Context, prepared *PreparedAuthorization) (*evm.ExactEIP3009Payload, error) {
	signature, err := c.signer.SignTypedData(
		ctx,
		prepared.Domain,
		prepared.Types,
		evm.PrimaryTypeTransferWithAuthorization,
		prepared.Message(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}

	hash, err := prepared.Hash()
	if err != nil {
		return nil, err
	}

	recovered, err := evm.RecoverEOAAddress(hash, signature)
	if err != nil {
		return nil, &SignatureMismatchError{Expected: prepared.Authorization.From, Recovered: err.Error()}
	}
	if !strings.EqualFold(recovered.Hex(), prepared.Authorization.From) {
		return nil, &SignatureMismatchError{Expected: prepared.Authorization.From, Recovered: recovered.Hex()}
	}

	return &evm.ExactEIP3009Payload{
		Signature:     hexutil.Encode(signature),
		Authorization: prepared.Authorization,
	}, nil
}

// CreatePaymentPayload prepares and signs a v1 payment payload
func (c *ExactEvmScheme) CreatePaymentPayload(
	ctx context.Context,
	requirements types.PaymentRequirements,
) (types.PaymentPayload, error) {
	prepared, err := c.PrepareAuthorization(requirements)
	if err != nil {
		return types.PaymentPayload{}, err
	}

	signed, err := c.SignAuthorization(ctx, prepared)
	if err != nil {
		return types.PaymentPayload{}, err
	}

	return NewPaymentPayload(requirements, signed), nil
}

// NewPaymentPayload wraps a signed authorization in the v1 envelope
func NewPaymentPayload(requirements types.PaymentRequirements, signed *evm.ExactEIP3009Payload) types.PaymentPayload {
	return types.PaymentPayload{
		X402Version: x402.ProtocolVersion,
		Scheme:      requirements.Scheme,
		Network:     requirements.Network,
		Payload:     signed.ToMap(),
	}
}

// RequiredAmount parses requirements.MaxAmountRequired
func RequiredAmount(requirements types.PaymentRequirements) (*big.Int, error) {
	value, err := evm.ParseAtomicAmount(requirements.MaxAmountRequired)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", x402.ErrInvalidAmount, requirements.MaxAmountRequired)
	}
	return value, nil
}
