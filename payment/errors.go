package payment

import (
	"fmt"
	"math/big"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
)

// UnsupportedNetworkError is returned for a challenge on a network outside the registry
type UnsupportedNetworkError struct {
	Network string
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network: %s (supported: %v)", e.Network, evm.SupportedNetworks())
}

// Is matches x402.ErrUnsupportedNetwork
func (e *UnsupportedNetworkError) Is(target error) bool {
	return target == x402.ErrUnsupportedNetwork
}

// InsufficientBalanceError carries the amounts needed to tell the user how short they are
type InsufficientBalanceError struct {
	Required    *big.Int
	Available   *big.Int
	Decimals    int
	Symbol      string
	Network     string
	NetworkName string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s %s, need %s %s on %s (%s)",
		evm.FormatAmountFixed(e.Available, e.Decimals), e.Symbol,
		evm.FormatAmountFixed(e.Required, e.Decimals), e.Symbol,
		e.NetworkName, e.Network)
}

// Is matches x402.ErrInsufficientBalance
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == x402.ErrInsufficientBalance
}

// ContractNotFoundError means the balance read returned no data, which
// usually means the wallet is connected to a different chain than the asset lives on.
type ContractNotFoundError struct {
	Network     string
	NetworkName string
	Asset       string
	Err         error
}

func (e *ContractNotFoundError) Error() string {
	return fmt.Sprintf("could not verify balance: make sure the wallet is connected to %s (%s) and that contract %s exists on that network",
		e.NetworkName, e.Network, e.Asset)
}

// Is matches x402.ErrContractNotFound
func (e *ContractNotFoundError) Is(target error) bool {
	return target == x402.ErrContractNotFound
}

func (e *ContractNotFoundError) Unwrap() error {
	return e.Err
}

// AmountExceededError is returned when a challenge asks for more than the configured ceiling
type AmountExceededError struct {
	Required *big.Int
	Max      *big.Int
	Decimals int
}

func (e *AmountExceededError) Error() string {
	return fmt.Sprintf("payment of %s exceeds the per-call limit of %s",
		evm.FormatAmountFixed(e.Required, e.Decimals), evm.FormatAmountFixed(e.Max, e.Decimals))
}

// Is matches x402.ErrAmountExceeded
func (e *AmountExceededError) Is(target error) bool {
	return target == x402.ErrAmountExceeded
}
