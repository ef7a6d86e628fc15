// Package wallet talks to EIP-1193 style wallet providers: browser extension
// bridges, JSON-RPC wallet daemons or the headless signer in signers/evm.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
)

// Provider method names consumed by the connector
const (
	MethodRequestAccounts    = "eth_requestAccounts"
	MethodAccounts           = "eth_accounts"
	MethodChainID            = "eth_chainId"
	MethodGetBalance         = "eth_getBalance"
	MethodCall               = "eth_call"
	MethodSignTypedDataV4    = "eth_signTypedData_v4"
	MethodRequestPermissions = "wallet_requestPermissions"
	MethodRevokePermissions  = "wallet_revokePermissions"
	MethodSwitchChain        = "wallet_switchEthereumChain"
	MethodAddChain           = "wallet_addEthereumChain"
)

// Provider events
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// EventHandler receives the JSON payload of a provider event
type EventHandler func(payload json.RawMessage)

// Provider is the request/event surface of an injected wallet
type Provider interface {
	// Request sends a JSON-RPC style request and returns the raw result
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// On subscribes to a provider event. The returned func removes the handler.
	On(event string, handler EventHandler) (remove func())
}

// ProviderError is an error reported by the provider with an EIP-1193 code
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewProviderError creates a ProviderError
func NewProviderError(code int, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Is maps the user rejection code onto x402.ErrUserRejected
func (e *ProviderError) Is(target error) bool {
	return target == x402.ErrUserRejected && e.Code == CodeUserRejected
}

// ErrorCode returns the EIP-1193 code
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// AddChainParams is the wallet_addEthereumChain parameter object
type AddChainParams struct {
	ChainID           string        `json:"chainId"`
	ChainName         string        `json:"chainName"`
	NativeCurrency    CurrencyParam `json:"nativeCurrency"`
	RPCURLs           []string      `json:"rpcUrls"`
	BlockExplorerURLs []string      `json:"blockExplorerUrls,omitempty"`
}

// CurrencyParam describes a native currency for wallet_addEthereumChain
type CurrencyParam struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// SwitchChainParams is the wallet_switchEthereumChain parameter object
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// PermissionRequest asks for the eth_accounts permission
type PermissionRequest struct {
	EthAccounts struct{} `json:"eth_accounts"`
}

// CallParams is the transaction object of an eth_call
type CallParams struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Data string `json:"data"`
}
