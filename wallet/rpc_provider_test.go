package wallet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
)

type ethService struct{}

func (ethService) ChainId() string { return "0xaa36a7" }

func (ethService) Accounts() []string { return []string{userA} }

func (ethService) RequestAccounts() ([]string, error) {
	return nil, NewProviderError(CodeUserRejected, "User rejected the request")
}

func newInProcProvider(t *testing.T) *RPCProvider {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", ethService{}))
	t.Cleanup(server.Stop)

	p := NewRPCProvider(rpc.DialInProc(server))
	t.Cleanup(p.Close)
	return p
}

func TestRPCProviderRequest(t *testing.T) {
	p := newInProcProvider(t)

	state := NewConnector(p).State(context.Background())
	assert.True(t, state.IsConnected)
	assert.Equal(t, int64(11155111), *state.ChainID)
}

func TestRPCProviderMapsErrorCodes(t *testing.T) {
	p := newInProcProvider(t)

	_, err := p.Request(context.Background(), MethodRequestAccounts)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeUserRejected, perr.Code)
	assert.ErrorIs(t, err, x402.ErrUserRejected)

	_, err = NewConnector(p).Connect(context.Background(), false)
	assert.ErrorIs(t, err, x402.ErrUserRejected)
}

func TestRPCProviderHasNoEvents(t *testing.T) {
	p := newInProcProvider(t)
	remove := p.On(EventChainChanged, func(json.RawMessage) {})
	remove()
}
