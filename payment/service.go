// Package payment runs a single x402 payment attempt against a connected
// wallet and reports its progress as a small state machine.
package payment

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm/exact/client"
	"github.com/ultravioletadao/ultrapayx402/go/types"
	"github.com/ultravioletadao/ultrapayx402/go/wallet"
)

// Step is the progress of a payment attempt
type Step string

const (
	StepIdle             Step = "idle"
	StepConnecting       Step = "connecting"
	StepSwitchingNetwork Step = "switching_network"
	StepExecuting        Step = "executing"
	StepConfirming       Step = "confirming"
	StepCompleted        Step = "completed"
	StepError            Step = "error"
)

// State is the observable payment state
type State struct {
	IsConnected  bool   `json:"isConnected"`
	Address      string `json:"address,omitempty"`
	IsProcessing bool   `json:"isProcessing"`
	CurrentStep  Step   `json:"currentStep"`
	Error        string `json:"error,omitempty"`
}

// Wallet is the connected wallet handle. *wallet.Connector implements it.
type Wallet interface {
	evm.ClientEvmSigner
	IsConnected() bool
	SwitchToNetwork(ctx context.Context, target evm.NetworkInfo) (bool, error)
}

// Connector is a Wallet that can also be connected and disconnected
type Connector interface {
	Wallet
	Connect(ctx context.Context, forceReselect bool) (wallet.State, error)
	Disconnect(ctx context.Context)
}

// Option configures a Service
type Option func(*Service)

// WithMaxAmount rejects challenges above max atomic units before touching the wallet
func WithMaxAmount(max *big.Int) Option {
	return func(s *Service) {
		s.maxAmount = max
	}
}

// WithSchemeOptions passes options to the exact scheme, e.g. a fixed clock in tests
func WithSchemeOptions(opts ...client.Option) Option {
	return func(s *Service) {
		s.schemeOpts = append(s.schemeOpts, opts...)
	}
}

// Service executes x402 payments. It models one attempt at a time and
// does not serialize concurrent ExecutePayment calls; callers should not
// start a new attempt while State().IsProcessing is true.
type Service struct {
	wallet     Wallet
	maxAmount  *big.Int
	schemeOpts []client.Option

	mu        sync.RWMutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

// NewService creates a Service. w may be nil when no wallet is available.
func NewService(w Wallet, opts ...Option) *Service {
	s := &Service{
		wallet:    w,
		state:     State{CurrentStep: StepIdle},
		listeners: make(map[int]func(State)),
	}
	if w != nil && w.IsConnected() {
		s.state.IsConnected = true
		s.state.Address = w.Address()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the payment state
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnStateChange registers fn for every state update; the returned func removes it
func (s *Service) OnStateChange(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) update(apply func(*State)) {
	s.mu.Lock()
	apply(&s.state)
	snapshot := s.state
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func (s *Service) step(step Step) {
	s.update(func(st *State) {
		st.CurrentStep = step
		st.IsProcessing = true
	})
}

func (s *Service) fail(ctx context.Context, err error) error {
	logx.WithContext(ctx).Errorf("payment failed: %v", err)
	s.update(func(st *State) {
		st.CurrentStep = StepError
		st.IsProcessing = false
		st.Error = err.Error()
	})
	return err
}

// IsConnected reports whether a wallet is connected and able to sign
func (s *Service) IsConnected() bool {
	return s.wallet != nil && s.wallet.IsConnected()
}

// HasWallet reports whether a wallet handle was provided
func (s *Service) HasWallet() bool {
	return s.wallet != nil
}

// ConnectWallet connects through the wallet when it supports it
func (s *Service) ConnectWallet(ctx context.Context) error {
	conn, ok := s.wallet.(Connector)
	if !ok {
		return x402.ErrNoProvider
	}

	s.step(StepConnecting)
	state, err := conn.Connect(ctx, false)
	if err != nil {
		return s.fail(ctx, err)
	}

	s.update(func(st *State) {
		st.IsConnected = true
		st.Address = state.Address
		st.IsProcessing = false
		st.CurrentStep = StepIdle
	})
	return nil
}

// DisconnectWallet drops the wallet connection and resets the state
func (s *Service) DisconnectWallet(ctx context.Context) {
	if conn, ok := s.wallet.(Connector); ok {
		conn.Disconnect(ctx)
	}
	s.update(func(st *State) {
		st.IsConnected = false
		st.Address = ""
		st.CurrentStep = StepIdle
		st.Error = ""
	})
}

// HandleWalletChange follows accountsChanged and chainChanged events.
// An empty account list drops the connection without asking the wallet to
// revoke again. Otherwise only the address is refreshed: every attempt reads
// and switches the wallet chain itself, so a chain change needs no state here.
func (s *Service) HandleWalletChange(ctx context.Context, ws wallet.State) {
	setter, canSet := s.wallet.(interface{ SetAccount(string) })
	if !ws.IsConnected {
		if canSet {
			setter.SetAccount("")
		}
		logx.WithContext(ctx).Info("wallet access revoked")
		s.update(func(st *State) {
			st.IsConnected = false
			st.Address = ""
			st.CurrentStep = StepIdle
			st.Error = ""
		})
		return
	}
	if canSet {
		setter.SetAccount(ws.Address)
	}
	s.update(func(st *State) {
		st.IsConnected = true
		st.Address = ws.Address
	})
}

// WatchWallet feeds the wallet's account and chain events into
// HandleWalletChange until unsubscribe is called. Wallets without events
// are not watched.
func (s *Service) WatchWallet(ctx context.Context) (unsubscribe func()) {
	w, ok := s.wallet.(interface {
		OnChange(context.Context, func(wallet.State)) func()
	})
	if !ok {
		return func() {}
	}
	return w.OnChange(ctx, func(ws wallet.State) {
		s.HandleWalletChange(ctx, ws)
	})
}

// ExecutePayment pays the first accepted option of challenge and returns the
// base64 X-PAYMENT header value.
func (s *Service) ExecutePayment(ctx context.Context, challenge *types.PaymentRequired) (string, error) {
	if !s.IsConnected() {
		return "", x402.ErrWalletNotConnected
	}
	logger := logx.WithContext(ctx)

	s.update(func(st *State) {
		st.CurrentStep = StepConnecting
		st.IsProcessing = true
		st.Error = ""
	})

	if challenge == nil || len(challenge.Accepts) == 0 {
		return "", s.fail(ctx, x402.ErrNoAcceptedScheme)
	}
	accept := challenge.Accepts[0]

	info, ok := evm.InfoByNetworkName(accept.Network)
	if !ok {
		return "", s.fail(ctx, &UnsupportedNetworkError{Network: accept.Network})
	}

	amount, err := client.RequiredAmount(accept)
	if err != nil {
		return "", s.fail(ctx, err)
	}
	decimals, symbol := displayUnits(info.Network, accept.Asset)
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return "", s.fail(ctx, &AmountExceededError{Required: amount, Max: s.maxAmount, Decimals: decimals})
	}

	s.step(StepSwitchingNetwork)
	if _, err := s.wallet.SwitchToNetwork(ctx, info); err != nil {
		return "", s.fail(ctx, err)
	}

	s.step(StepExecuting)
	address := s.wallet.Address()
	balance, err := evm.BalanceOf(ctx, s.wallet, accept.Asset, address)
	if err != nil {
		if errors.Is(err, evm.ErrBadData) {
			return "", s.fail(ctx, &ContractNotFoundError{
				Network:     accept.Network,
				NetworkName: info.Name,
				Asset:       accept.Asset,
				Err:         err,
			})
		}
		return "", s.fail(ctx, err)
	}
	if balance.Cmp(amount) < 0 {
		return "", s.fail(ctx, &InsufficientBalanceError{
			Required:    amount,
			Available:   balance,
			Decimals:    decimals,
			Symbol:      symbol,
			Network:     accept.Network,
			NetworkName: info.Name,
		})
	}

	scheme := client.NewExactEvmScheme(s.wallet, s.schemeOpts...)
	prepared, err := scheme.PrepareAuthorization(accept)
	if err != nil {
		return "", s.fail(ctx, err)
	}

	s.step(StepConfirming)
	signed, err := scheme.SignAuthorization(ctx, prepared)
	if err != nil {
		return "", s.fail(ctx, err)
	}

	header, err := types.EncodePaymentHeader(client.NewPaymentPayload(accept, signed))
	if err != nil {
		return "", s.fail(ctx, err)
	}

	s.update(func(st *State) {
		st.CurrentStep = StepCompleted
		st.IsProcessing = false
		st.Error = ""
	})
	logger.Infof("payment authorized: %s to %s on %s", evm.FormatAmountFixed(amount, decimals), accept.PayTo, accept.Network)
	return header, nil
}

// displayUnits returns the decimals and symbol used in messages. Only the
// registry's USDC deployments are known; anything else is shown as 6-decimal USDC.
func displayUnits(network, asset string) (int, string) {
	if known, ok := evm.DefaultAsset(network); ok && strings.EqualFold(known.Address, asset) {
		return known.Decimals, known.Symbol
	}
	return evm.DefaultDecimals, evm.DefaultTokenSymbol
}
