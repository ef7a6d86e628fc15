package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
)

type call struct {
	method string
	params []any
}

// fakeProvider answers from a per-method script; a script entry is either
// a value to marshal or an error.
type fakeProvider struct {
	mu       sync.Mutex
	script   map[string][]any
	calls    []call
	handlers map[string][]EventHandler
	rabby    bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		script:   make(map[string][]any),
		handlers: make(map[string][]EventHandler),
	}
}

func (f *fakeProvider) on(method string, results ...any) *fakeProvider {
	f.script[method] = append(f.script[method], results...)
	return f
}

func (f *fakeProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, params: params})

	results := f.script[method]
	if len(results) == 0 {
		return nil, NewProviderError(CodeUnsupportedMethod, method)
	}
	next := results[0]
	if len(results) > 1 {
		f.script[method] = results[1:]
	}
	if err, ok := next.(error); ok {
		return nil, err
	}
	return json.Marshal(next)
}

func (f *fakeProvider) On(event string, handler EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], handler)
	idx := len(f.handlers[event]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[event][idx] = nil
	}
}

func (f *fakeProvider) fire(event string, payload any) {
	raw, _ := json.Marshal(payload)
	f.mu.Lock()
	handlers := append([]EventHandler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(raw)
		}
	}
}

func (f *fakeProvider) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

func (f *fakeProvider) IsRabby() bool    { return f.rabby }
func (f *fakeProvider) IsMetaMask() bool { return true }

const (
	userA = "0xAbC0000000000000000000000000000000000001"
	userB = "0xabc0000000000000000000000000000000000002"
)

func TestConnect(t *testing.T) {
	p := newFakeProvider().
		on(MethodRequestPermissions, []any{}).
		on(MethodRequestAccounts, []string{userA}).
		on(MethodChainID, "0x14a34").
		on(MethodGetBalance, "0xde0b6b3a7640000") // 1 ether

	c := NewConnector(p)
	state, err := c.Connect(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, state.IsConnected)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", state.Address)
	require.NotNil(t, state.ChainID)
	assert.Equal(t, int64(84532), *state.ChainID)
	require.NotNil(t, state.Balance)
	assert.Equal(t, "1.0000", *state.Balance)

	assert.True(t, c.IsConnected())
	assert.Equal(t, state.Address, c.Address())
	assert.Equal(t, []string{MethodRequestPermissions, MethodRequestAccounts, MethodChainID, MethodGetBalance}, p.methods())
}

func TestConnectFallsBackWhenPermissionsFail(t *testing.T) {
	p := newFakeProvider().
		on(MethodRequestPermissions, NewProviderError(CodeUnsupportedMethod, "nope")).
		on(MethodRequestAccounts, []string{userA}).
		on(MethodChainID, "0x1").
		on(MethodGetBalance, "0x0")

	state, err := NewConnector(p).Connect(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "0.0000", *state.Balance)
}

func TestConnectErrors(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		_, err := NewConnector(nil).Connect(context.Background(), false)
		assert.ErrorIs(t, err, x402.ErrNoProvider)
	})

	t.Run("no accounts", func(t *testing.T) {
		p := newFakeProvider().on(MethodRequestAccounts, []string{})
		_, err := NewConnector(p).Connect(context.Background(), false)
		assert.ErrorIs(t, err, x402.ErrNoAccounts)
	})

	t.Run("user rejected", func(t *testing.T) {
		p := newFakeProvider().on(MethodRequestAccounts, NewProviderError(CodeUserRejected, "User rejected"))
		c := NewConnector(p)
		_, err := c.Connect(context.Background(), false)
		assert.ErrorIs(t, err, x402.ErrUserRejected)
		assert.False(t, c.IsConnected())
	})
}

func TestSwitchAccount(t *testing.T) {
	p := newFakeProvider().
		on(MethodAccounts, []string{userA}, []string{userB}).
		on(MethodRequestPermissions, []any{}).
		on(MethodChainID, "0x14a34").
		on(MethodGetBalance, "0x0")

	c := NewConnector(p)
	state, err := c.SwitchAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, userB, state.Address)
	assert.Equal(t, userB, c.Address())
}

func TestSwitchAccountUnchanged(t *testing.T) {
	tests := []struct {
		name     string
		rabby    bool
		guidance string
	}{
		{"metamask", false, "select a different account in your wallet"},
		{"rabby", true, "click the Rabby icon and select another account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider().
				on(MethodAccounts, []string{userA}, []string{"0xabc0000000000000000000000000000000000001"}).
				on(MethodRequestPermissions, []any{})
			p.rabby = tt.rabby

			_, err := NewConnector(p).SwitchAccount(context.Background())
			require.ErrorIs(t, err, x402.ErrAccountUnchanged)

			var unchanged *AccountUnchangedError
			require.ErrorAs(t, err, &unchanged)
			assert.Contains(t, err.Error(), tt.guidance)
		})
	}
}

func TestSwitchAccountRabbyPickerFailure(t *testing.T) {
	p := newFakeProvider().
		on(MethodAccounts, []string{userA}).
		on(MethodRequestPermissions, errors.New("popup blocked"))
	p.rabby = true

	_, err := NewConnector(p).SwitchAccount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rabby")
}

func TestDisconnectSwallowsRevokeFailure(t *testing.T) {
	p := newFakeProvider().
		on(MethodRequestAccounts, []string{userA}).
		on(MethodChainID, "0x1").
		on(MethodGetBalance, "0x0").
		on(MethodRevokePermissions, NewProviderError(CodeUnsupportedMethod, "not supported"))

	c := NewConnector(p)
	_, err := c.Connect(context.Background(), false)
	require.NoError(t, err)

	c.Disconnect(context.Background())
	assert.False(t, c.IsConnected())
	assert.Empty(t, c.Address())
	assert.Contains(t, p.methods(), MethodRevokePermissions)
}

func TestState(t *testing.T) {
	assert.Equal(t, State{}, NewConnector(nil).State(context.Background()))

	p := newFakeProvider().on(MethodAccounts, []string{})
	assert.Equal(t, State{}, NewConnector(p).State(context.Background()))

	p = newFakeProvider().on(MethodAccounts, []string{userA}).on(MethodChainID, "0x2105")
	state := NewConnector(p).State(context.Background())
	assert.True(t, state.IsConnected)
	assert.Equal(t, int64(8453), *state.ChainID)
	assert.Nil(t, state.Balance)
	assert.NotContains(t, p.methods(), MethodRequestAccounts)
}

func TestSwitchToNetwork(t *testing.T) {
	info, ok := evm.InfoByNetworkName("base-sepolia")
	require.True(t, ok)

	t.Run("known chain", func(t *testing.T) {
		p := newFakeProvider().on(MethodSwitchChain, nil)
		ok, err := NewConnector(p).SwitchToNetwork(context.Background(), info)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{MethodSwitchChain}, p.methods())
	})

	t.Run("unknown chain is added", func(t *testing.T) {
		p := newFakeProvider().
			on(MethodSwitchChain, NewProviderError(CodeUnrecognizedChain, "Unrecognized chain"), nil).
			on(MethodAddChain, nil)

		ok, err := NewConnector(p).SwitchToNetwork(context.Background(), info)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{MethodSwitchChain, MethodAddChain, MethodSwitchChain}, p.methods())

		params := p.calls[1].params[0].(AddChainParams)
		assert.Equal(t, "0x14a34", params.ChainID)
		assert.Equal(t, []string{"https://sepolia.base.org"}, params.RPCURLs)
		assert.Equal(t, "ETH", params.NativeCurrency.Symbol)
	})

	t.Run("add failure", func(t *testing.T) {
		p := newFakeProvider().
			on(MethodSwitchChain, NewProviderError(CodeUnrecognizedChain, "Unrecognized chain")).
			on(MethodAddChain, NewProviderError(CodeUserRejected, "User rejected"))

		_, err := NewConnector(p).SwitchToNetwork(context.Background(), info)
		var switchErr *ChainSwitchError
		require.ErrorAs(t, err, &switchErr)
		assert.True(t, switchErr.Added)
		assert.ErrorIs(t, err, x402.ErrUserRejected)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		p := newFakeProvider().on(MethodSwitchChain, NewProviderError(CodeUserRejected, "User rejected"))
		_, err := NewConnector(p).SwitchToNetwork(context.Background(), info)
		assert.ErrorIs(t, err, x402.ErrUserRejected)
		assert.Equal(t, []string{MethodSwitchChain}, p.methods())
	})
}

func TestOnChange(t *testing.T) {
	p := newFakeProvider().
		on(MethodAccounts, []string{userB}).
		on(MethodChainID, "0x1")
	c := NewConnector(p)

	var got []State
	unsubscribe := c.OnChange(context.Background(), func(s State) { got = append(got, s) })

	p.fire(EventAccountsChanged, []string{})
	p.fire(EventAccountsChanged, []string{userB})
	p.fire(EventChainChanged, "0x1")

	require.Len(t, got, 3)
	assert.False(t, got[0].IsConnected)
	assert.Equal(t, userB, got[1].Address)
	assert.Equal(t, int64(1), *got[2].ChainID)

	unsubscribe()
	unsubscribe()
	p.fire(EventChainChanged, "0x1")
	assert.Len(t, got, 3)
}

func TestConnectorFollowsAccountEvents(t *testing.T) {
	p := newFakeProvider().
		on(MethodRequestAccounts, []string{userA}).
		on(MethodChainID, "0x14a34").
		on(MethodGetBalance, "0x0")
	c := NewConnector(p)

	p.fire(EventAccountsChanged, []string{userB})
	assert.False(t, c.IsConnected(), "events never connect")

	_, err := c.Connect(context.Background(), false)
	require.NoError(t, err)

	p.fire(EventAccountsChanged, []string{userB})
	assert.True(t, c.IsConnected())
	assert.Equal(t, userB, c.Address())

	var seen []bool
	c.OnChange(context.Background(), func(State) { seen = append(seen, c.IsConnected()) })

	p.fire(EventAccountsChanged, []string{})
	assert.False(t, c.IsConnected())
	assert.Empty(t, c.Address())
	assert.Equal(t, []bool{false}, seen)

	_, err = c.SignTypedData(context.Background(), evm.TypedDataDomain{}, nil, "Mail", nil)
	assert.ErrorIs(t, err, x402.ErrWalletNotConnected)
}

func TestDetectKind(t *testing.T) {
	p := newFakeProvider()
	assert.Equal(t, KindMetaMask, DetectKind(p))
	p.rabby = true
	assert.Equal(t, KindRabby, DetectKind(p))
	assert.Equal(t, KindOther, DetectKind(&RPCProvider{}))
	assert.Equal(t, "rabby", KindRabby.String())
}

func TestFormatEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("1234567890000000000", 10)
	assert.Equal(t, "1.2346", FormatEther(wei))
}
