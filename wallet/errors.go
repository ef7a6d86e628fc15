package wallet

import (
	"fmt"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
)

// AccountUnchangedError is returned when an account switch yields the same account
type AccountUnchangedError struct {
	Address string
	Kind    Kind
}

func (e *AccountUnchangedError) Error() string {
	return fmt.Sprintf("account %s did not change: %s", e.Address, e.Kind.SwitchGuidance())
}

// Is matches x402.ErrAccountUnchanged
func (e *AccountUnchangedError) Is(target error) bool {
	return target == x402.ErrAccountUnchanged
}

// ChainSwitchError reports a failed wallet_switchEthereumChain or wallet_addEthereumChain
type ChainSwitchError struct {
	Network string
	Added   bool
	Err     error
}

func (e *ChainSwitchError) Error() string {
	if e.Added {
		return fmt.Sprintf("could not add network %s: %v", e.Network, e.Err)
	}
	return fmt.Sprintf("could not switch to network %s: %v", e.Network, e.Err)
}

func (e *ChainSwitchError) Unwrap() error {
	return e.Err
}
