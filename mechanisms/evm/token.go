package evm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrBadData is returned when a contract call yields no decodable output,
// which is what an eth_call against an address without code looks like.
var ErrBadData = errors.New("contract returned no data")

// PackCall encodes a contract call from a JSON ABI
func PackCall(abiJSON []byte, functionName string, args ...interface{}) ([]byte, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	data, err := parsed.Pack(functionName, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", functionName, err)
	}
	return data, nil
}

// UnpackCall decodes contract call output. A single return value is returned
// bare, several are returned as a slice.
func UnpackCall(abiJSON []byte, functionName string, output []byte) (interface{}, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	method, ok := parsed.Methods[functionName]
	if !ok {
		return nil, fmt.Errorf("method %s not in ABI", functionName)
	}
	if len(method.Outputs) == 0 {
		return nil, nil
	}
	if len(output) == 0 {
		return nil, ErrBadData
	}

	values, err := parsed.Unpack(functionName, output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadData, err)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}

// BalanceOf reads an ERC-20 balance in atomic units
func BalanceOf(ctx context.Context, reader ContractReader, asset string, owner string) (*big.Int, error) {
	result, err := reader.ReadContract(ctx, asset, ERC20BalanceOfABI, FunctionBalanceOf, common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}

	balance, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected balanceOf result %T", ErrBadData, result)
	}
	return balance, nil
}
