package evm

import (
	"context"
	"fmt"
	"math/big"
)

// ExactEIP3009Authorization represents the EIP-3009 TransferWithAuthorization data
type ExactEIP3009Authorization struct {
	From        string `json:"from"`        // Ethereum address (hex)
	To          string `json:"to"`          // Ethereum address (hex)
	Value       string `json:"value"`       // Atomic units as decimal string
	ValidAfter  string `json:"validAfter"`  // Unix timestamp as string
	ValidBefore string `json:"validBefore"` // Unix timestamp as string
	Nonce       string `json:"nonce"`       // 32-byte nonce as hex string
}

// ExactEIP3009Payload represents the exact payment payload for EVM networks
type ExactEIP3009Payload struct {
	Signature     string                    `json:"signature,omitempty"`
	Authorization ExactEIP3009Authorization `json:"authorization"`
}

// NativeCurrency describes the gas token of a chain
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NetworkInfo is the registry descriptor of a supported chain
type NetworkInfo struct {
	Network        string         `json:"network"`
	Name           string         `json:"name"`
	ChainID        int64          `json:"chainId"`
	ChainIDHex     string         `json:"chainIdHex"`
	RPCURL         string         `json:"rpcUrl"`
	Explorer       string         `json:"explorer"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
}

// ChainIDBig returns the chain id as a big integer for EIP-712 domains
func (n NetworkInfo) ChainIDBig() *big.Int {
	return big.NewInt(n.ChainID)
}

// ContractReader defines the interface for reading from a smart contract
type ContractReader interface {
	ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error)
}

// ClientEvmSigner defines the interface for client-side EVM signing operations
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address
	Address() string

	// SignTypedData signs EIP-712 typed data
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)

	// ReadContract reads data from a smart contract
	ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error)
}

// TypedDataDomain represents the EIP-712 domain separator
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// AssetInfo contains information about an ERC20 token
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Symbol   string
	Decimals int
}

// ToMap converts an ExactEIP3009Payload to a map for JSON marshaling
func (p *ExactEIP3009Payload) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"authorization": p.Authorization.ToMessage(),
	}
	if p.Signature != "" {
		result["signature"] = p.Signature
	}
	return result
}

// ToMessage returns the authorization as an EIP-712 message with string values
func (a ExactEIP3009Authorization) ToMessage() map[string]interface{} {
	return map[string]interface{}{
		"from":        a.From,
		"to":          a.To,
		"value":       a.Value,
		"validAfter":  a.ValidAfter,
		"validBefore": a.ValidBefore,
		"nonce":       a.Nonce,
	}
}

// PayloadFromMap creates an ExactEIP3009Payload from a map
func PayloadFromMap(data map[string]interface{}) (*ExactEIP3009Payload, error) {
	payload := &ExactEIP3009Payload{}

	if sig, ok := data["signature"].(string); ok {
		payload.Signature = sig
	}

	auth, ok := data["authorization"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("payload has no authorization")
	}

	fields := map[string]*string{
		"from":        &payload.Authorization.From,
		"to":          &payload.Authorization.To,
		"value":       &payload.Authorization.Value,
		"validAfter":  &payload.Authorization.ValidAfter,
		"validBefore": &payload.Authorization.ValidBefore,
		"nonce":       &payload.Authorization.Nonce,
	}
	for name, dst := range fields {
		switch v := auth[name].(type) {
		case string:
			*dst = v
		case float64:
			// json numbers for timestamps
			*dst = big.NewFloat(v).Text('f', 0)
		case nil:
			return nil, fmt.Errorf("authorization missing %s", name)
		default:
			return nil, fmt.Errorf("authorization field %s has type %T", name, v)
		}
	}

	return payload, nil
}
