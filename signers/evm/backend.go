package evm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	x402evm "github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
)

// Backend is the chain access a ClientSigner needs. *ethclient.Client satisfies it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var erc20ABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(bytes.NewReader(x402evm.ERC20BalanceOfABI))
})

// MemoryBackend is an in-memory chain holding native balances and ERC-20
// balanceOf state. Calls to addresses without a registered token return no
// data, like an eth_call against an address without code.
type MemoryBackend struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
	tokens   map[common.Address]map[common.Address]*big.Int
}

// NewMemoryBackend creates an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		balances: make(map[common.Address]*big.Int),
		tokens:   make(map[common.Address]map[common.Address]*big.Int),
	}
}

// SetBalance sets the native balance of account in wei
func (b *MemoryBackend) SetBalance(account string, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[common.HexToAddress(account)] = new(big.Int).Set(wei)
}

// DeployToken registers an ERC-20 at address with no balances
func (b *MemoryBackend) DeployToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	addr := common.HexToAddress(token)
	if b.tokens[addr] == nil {
		b.tokens[addr] = make(map[common.Address]*big.Int)
	}
}

// SetTokenBalance sets balanceOf(owner) on token, deploying it if needed
func (b *MemoryBackend) SetTokenBalance(token, owner string, amount *big.Int) {
	b.DeployToken(token)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[common.HexToAddress(token)][common.HexToAddress(owner)] = new(big.Int).Set(amount)
}

// BalanceAt implements Backend
func (b *MemoryBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.balances[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// CallContract implements Backend for balanceOf
func (b *MemoryBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if call.To == nil {
		return nil, errors.New("contract creation is not supported")
	}

	b.mu.RLock()
	holders, ok := b.tokens[*call.To]
	b.mu.RUnlock()
	if !ok {
		return []byte{}, nil
	}

	parsed, err := erc20ABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods[x402evm.FunctionBalanceOf]
	if len(call.Data) < 4 || !bytes.Equal(call.Data[:4], method.ID) {
		return nil, errors.New("execution reverted")
	}

	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %w", err)
	}
	owner, ok := args[0].(common.Address)
	if !ok {
		return nil, errors.New("execution reverted")
	}

	b.mu.RLock()
	balance, ok := holders[owner]
	b.mu.RUnlock()
	if !ok {
		balance = new(big.Int)
	}
	return method.Outputs.Pack(balance)
}
