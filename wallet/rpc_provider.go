package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCProvider is a Provider over a JSON-RPC endpoint such as a wallet daemon
// or a signer like clef. JSON-RPC has no push channel here, so On never fires.
type RPCProvider struct {
	client *rpc.Client
}

// NewRPCProvider wraps an existing rpc client
func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

// DialRPCProvider connects to rawurl (http, ws or ipc)
func DialRPCProvider(ctx context.Context, rawurl string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet RPC: %w", err)
	}
	return NewRPCProvider(client), nil
}

// Request implements Provider. JSON-RPC errors carrying a code become ProviderError.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, NewProviderError(rpcErr.ErrorCode(), rpcErr.Error())
		}
		return nil, err
	}
	return raw, nil
}

// On implements Provider
func (p *RPCProvider) On(event string, handler EventHandler) func() {
	return func() {}
}

// Close closes the underlying client
func (p *RPCProvider) Close() {
	p.client.Close()
}
