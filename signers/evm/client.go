package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/zeromicro/go-zero/core/logx"

	x402evm "github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/wallet"
)

// Approver stands in for the wallet popup. Returning false rejects the request with code 4001.
type Approver func(ctx context.Context, method string) bool

// AccountSelector stands in for the account picker and returns the chosen index
type AccountSelector func(ctx context.Context, accounts []string, current int) int

// Dialer opens a Backend for an RPC URL
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

// Option configures a ClientSigner
type Option func(*ClientSigner)

// WithChainID sets the chain the wallet starts on
func WithChainID(chainID int64) Option {
	return func(s *ClientSigner) {
		s.chainID = chainID
		s.known[chainID] = ""
	}
}

// WithBackend injects the chain access for chainID
func WithBackend(chainID int64, backend Backend) Option {
	return func(s *ClientSigner) {
		s.backends[chainID] = backend
	}
}

// WithKnownChains limits the chains the wallet can switch to without
// wallet_addEthereumChain. By default every registry chain is known.
func WithKnownChains(chainIDs ...int64) Option {
	return func(s *ClientSigner) {
		s.known = make(map[int64]string, len(chainIDs)+1)
		s.known[s.chainID] = ""
		for _, id := range chainIDs {
			s.known[id] = ""
		}
	}
}

// WithApprover sets the popup approval policy
func WithApprover(approve Approver) Option {
	return func(s *ClientSigner) {
		s.approve = approve
	}
}

// WithAccountSelector sets the account picker used by wallet_requestPermissions
func WithAccountSelector(selectAccount AccountSelector) Option {
	return func(s *ClientSigner) {
		s.selectAccount = selectAccount
	}
}

// WithDialer overrides how RPC backends are opened
func WithDialer(dial Dialer) Option {
	return func(s *ClientSigner) {
		s.dial = dial
	}
}

// WithKind makes the signer identify as a specific wallet
func WithKind(kind wallet.Kind) Option {
	return func(s *ClientSigner) {
		s.kind = kind
	}
}

// ClientSigner is a headless wallet provider backed by local ECDSA keys.
// It answers the same requests a browser extension would and emits
// accountsChanged and chainChanged events.
type ClientSigner struct {
	keys      []*ecdsa.PrivateKey
	addresses []common.Address
	kind      wallet.Kind

	approve       Approver
	selectAccount AccountSelector
	dial          Dialer

	mu         sync.Mutex
	selected   int
	authorized bool
	chainID    int64
	known      map[int64]string // chain id -> rpc url added by the user
	backends   map[int64]Backend

	handlersMu sync.Mutex
	handlers   map[string]map[int]wallet.EventHandler
	nextID     int
}

var (
	_ wallet.Provider     = (*ClientSigner)(nil)
	_ wallet.KindReporter = (*ClientSigner)(nil)
)

func dialEthclient(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return client, nil
}

// NewClientSigner creates a headless wallet over keys. The first key is selected.
func NewClientSigner(keys []*ecdsa.PrivateKey, opts ...Option) (*ClientSigner, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one private key is required")
	}

	s := &ClientSigner{
		keys:          keys,
		addresses:     make([]common.Address, len(keys)),
		approve:       func(context.Context, string) bool { return true },
		selectAccount: func(_ context.Context, _ []string, current int) int { return current },
		dial:          dialEthclient,
		chainID:       84532,
		known:         make(map[int64]string),
		backends:      make(map[int64]Backend),
		handlers:      make(map[string]map[int]wallet.EventHandler),
	}
	for i, key := range keys {
		s.addresses[i] = crypto.PubkeyToAddress(key.PublicKey)
	}
	for _, network := range x402evm.SupportedNetworks() {
		id, _ := x402evm.ChainIDFromNetworkName(network)
		s.known[id] = ""
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewClientSignerFromPrivateKey creates a headless wallet from hex-encoded private keys
// (with or without "0x" prefix).
func NewClientSignerFromPrivateKey(privateKeyHex string, opts ...Option) (*ClientSigner, error) {
	return NewClientSignerFromPrivateKeys([]string{privateKeyHex}, opts...)
}

// NewClientSignerFromPrivateKeys is NewClientSignerFromPrivateKey for several accounts
func NewClientSignerFromPrivateKeys(privateKeysHex []string, opts ...Option) (*ClientSigner, error) {
	keys := make([]*ecdsa.PrivateKey, 0, len(privateKeysHex))
	for _, keyHex := range privateKeysHex {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		keys = append(keys, key)
	}
	return NewClientSigner(keys, opts...)
}

// Connect dials rpcURL and uses it for chainID
func (s *ClientSigner) Connect(ctx context.Context, chainID int64, rpcURL string) error {
	backend, err := s.dial(ctx, rpcURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.backends[chainID] = backend
	s.known[chainID] = rpcURL
	s.mu.Unlock()
	return nil
}

// Accounts returns the addresses of all keys
func (s *ClientSigner) Accounts() []string {
	out := make([]string, len(s.addresses))
	for i, a := range s.addresses {
		out[i] = a.Hex()
	}
	return out
}

// IsRabby implements wallet.KindReporter
func (s *ClientSigner) IsRabby() bool { return s.kind == wallet.KindRabby }

// IsMetaMask implements wallet.KindReporter; Rabby reports MetaMask too
func (s *ClientSigner) IsMetaMask() bool {
	return s.kind == wallet.KindMetaMask || s.kind == wallet.KindRabby
}

// On implements wallet.Provider
func (s *ClientSigner) On(event string, handler wallet.EventHandler) func() {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	if s.handlers[event] == nil {
		s.handlers[event] = make(map[int]wallet.EventHandler)
	}
	id := s.nextID
	s.nextID++
	s.handlers[event][id] = handler

	return func() {
		s.handlersMu.Lock()
		defer s.handlersMu.Unlock()
		delete(s.handlers[event], id)
	}
}

// emit must be called without s.mu held; handlers usually call back into Request
func (s *ClientSigner) emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}

	s.handlersMu.Lock()
	handlers := make([]wallet.EventHandler, 0, len(s.handlers[event]))
	for _, h := range s.handlers[event] {
		handlers = append(handlers, h)
	}
	s.handlersMu.Unlock()

	for _, h := range handlers {
		h(raw)
	}
}

func rejected(method string) error {
	return wallet.NewProviderError(wallet.CodeUserRejected, "User rejected the request: "+method)
}

// decodeParams normalizes Go values and JSON params into dst
func decodeParams(params []any, dst ...any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	if len(items) < len(dst) {
		return wallet.NewProviderError(-32602, fmt.Sprintf("expected %d params, got %d", len(dst), len(items)))
	}
	for i, d := range dst {
		if err := json.Unmarshal(items[i], d); err != nil {
			return wallet.NewProviderError(-32602, fmt.Sprintf("invalid param %d: %v", i, err))
		}
	}
	return nil
}

func result(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

// Request implements wallet.Provider
func (s *ClientSigner) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	logx.WithContext(ctx).Debugf("headless wallet request: %s", method)

	switch method {
	case wallet.MethodRequestAccounts:
		return s.requestAccounts(ctx)
	case wallet.MethodAccounts:
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.authorized {
			return result([]string{})
		}
		return result([]string{s.addresses[s.selected].Hex()})
	case wallet.MethodChainID:
		s.mu.Lock()
		defer s.mu.Unlock()
		return result(hexutil.EncodeUint64(uint64(s.chainID)))
	case wallet.MethodGetBalance:
		return s.getBalance(ctx, params)
	case wallet.MethodCall:
		return s.call(ctx, params)
	case wallet.MethodRequestPermissions:
		return s.requestPermissions(ctx)
	case wallet.MethodRevokePermissions:
		s.mu.Lock()
		s.authorized = false
		s.mu.Unlock()
		s.emit(wallet.EventAccountsChanged, []string{})
		return result(nil)
	case wallet.MethodSwitchChain:
		return s.switchChain(ctx, params)
	case wallet.MethodAddChain:
		return s.addChain(ctx, params)
	case wallet.MethodSignTypedDataV4:
		return s.signTypedData(ctx, params)
	default:
		return nil, wallet.NewProviderError(wallet.CodeUnsupportedMethod, "unsupported method: "+method)
	}
}

func (s *ClientSigner) requestAccounts(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	authorized := s.authorized
	s.mu.Unlock()

	if !authorized {
		if !s.approve(ctx, wallet.MethodRequestAccounts) {
			return nil, rejected(wallet.MethodRequestAccounts)
		}
		s.mu.Lock()
		s.authorized = true
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return result([]string{s.addresses[s.selected].Hex()})
}

func (s *ClientSigner) requestPermissions(ctx context.Context) (json.RawMessage, error) {
	if !s.approve(ctx, wallet.MethodRequestPermissions) {
		return nil, rejected(wallet.MethodRequestPermissions)
	}

	s.mu.Lock()
	previous := s.selected
	s.mu.Unlock()

	choice := s.selectAccount(ctx, s.Accounts(), previous)
	if choice < 0 || choice >= len(s.addresses) {
		return nil, rejected(wallet.MethodRequestPermissions)
	}

	s.mu.Lock()
	s.selected = choice
	s.authorized = true
	address := s.addresses[choice].Hex()
	s.mu.Unlock()

	if choice != previous {
		s.emit(wallet.EventAccountsChanged, []string{address})
	}
	return result([]map[string]string{{"parentCapability": wallet.MethodAccounts}})
}

func (s *ClientSigner) switchChain(ctx context.Context, params []any) (json.RawMessage, error) {
	var p wallet.SwitchChainParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return nil, wallet.NewProviderError(-32602, "invalid chainId: "+p.ChainID)
	}
	chainID := int64(id)

	s.mu.Lock()
	_, known := s.known[chainID]
	current := s.chainID
	s.mu.Unlock()

	if !known {
		return nil, wallet.NewProviderError(wallet.CodeUnrecognizedChain, "Unrecognized chain ID "+p.ChainID)
	}
	if chainID == current {
		return result(nil)
	}
	if !s.approve(ctx, wallet.MethodSwitchChain) {
		return nil, rejected(wallet.MethodSwitchChain)
	}

	s.mu.Lock()
	s.chainID = chainID
	s.mu.Unlock()
	s.emit(wallet.EventChainChanged, p.ChainID)
	return result(nil)
}

func (s *ClientSigner) addChain(ctx context.Context, params []any) (json.RawMessage, error) {
	var p wallet.AddChainParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return nil, wallet.NewProviderError(-32602, "invalid chainId: "+p.ChainID)
	}
	if !s.approve(ctx, wallet.MethodAddChain) {
		return nil, rejected(wallet.MethodAddChain)
	}

	var rpcURL string
	if len(p.RPCURLs) > 0 {
		rpcURL = p.RPCURLs[0]
	}
	s.mu.Lock()
	s.known[int64(id)] = rpcURL
	s.mu.Unlock()
	return result(nil)
}

// backend returns the chain access for the current chain, dialing it on first use
func (s *ClientSigner) backend(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	chainID := s.chainID
	if b, ok := s.backends[chainID]; ok {
		s.mu.Unlock()
		return b, nil
	}
	rpcURL := s.known[chainID]
	s.mu.Unlock()

	if rpcURL == "" {
		if info, ok := x402evm.InfoByChainID(chainID); ok {
			rpcURL = info.RPCURL
		}
	}
	if rpcURL == "" {
		return nil, wallet.NewProviderError(wallet.CodeChainDisconnected, fmt.Sprintf("no RPC for chain %d", chainID))
	}

	b, err := s.dial(ctx, rpcURL)
	if err != nil {
		return nil, wallet.NewProviderError(wallet.CodeChainDisconnected, err.Error())
	}
	s.mu.Lock()
	s.backends[chainID] = b
	s.mu.Unlock()
	return b, nil
}

func (s *ClientSigner) getBalance(ctx context.Context, params []any) (json.RawMessage, error) {
	var address string
	if err := decodeParams(params, &address); err != nil {
		return nil, err
	}
	b, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := b.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, err
	}
	return result(hexutil.EncodeBig(balance))
}

func (s *ClientSigner) call(ctx context.Context, params []any) (json.RawMessage, error) {
	var p wallet.CallParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	data, err := hexutil.Decode(p.Data)
	if err != nil {
		return nil, wallet.NewProviderError(-32602, "invalid call data")
	}

	b, err := s.backend(ctx)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(p.To)
	msg := ethereum.CallMsg{To: &to, Data: data}
	if p.From != "" {
		msg.From = common.HexToAddress(p.From)
	}
	out, err := b.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	return result(hexutil.Encode(out))
}

func (s *ClientSigner) signTypedData(ctx context.Context, params []any) (json.RawMessage, error) {
	var (
		address string
		payload string
	)
	if err := decodeParams(params, &address, &payload); err != nil {
		return nil, err
	}

	s.mu.Lock()
	authorized := s.authorized
	key := s.keys[s.selected]
	selected := s.addresses[s.selected]
	s.mu.Unlock()

	if !authorized || !strings.EqualFold(address, selected.Hex()) {
		return nil, wallet.NewProviderError(wallet.CodeUnauthorized, "account not authorized: "+address)
	}

	var typedData apitypes.TypedData
	if err := json.Unmarshal([]byte(payload), &typedData); err != nil {
		return nil, wallet.NewProviderError(-32602, "invalid typed data: "+err.Error())
	}

	if !s.approve(ctx, wallet.MethodSignTypedDataV4) {
		return nil, rejected(wallet.MethodSignTypedDataV4)
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	// recovery id 0/1 to 27/28
	signature[64] += 27

	return result(hexutil.Encode(signature))
}

// ChainID returns the wallet's current chain
func (s *ClientSigner) ChainID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID
}
