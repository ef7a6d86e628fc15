package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/zeromicro/go-zero/core/logx"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
)

// State is a snapshot of wallet connectivity
type State struct {
	IsConnected bool    `json:"isConnected"`
	Address     string  `json:"address,omitempty"` // lowercase hex
	ChainID     *int64  `json:"chainId,omitempty"`
	Balance     *string `json:"balance,omitempty"` // native balance in ether, 4 decimals
}

// Connector is the single point of contact with a wallet provider.
// It also acts as the evm.ClientEvmSigner for the connected account.
type Connector struct {
	provider Provider

	mu        sync.RWMutex
	connected bool
	address   string
}

var _ evm.ClientEvmSigner = (*Connector)(nil)

// NewConnector creates a connector. A nil provider is allowed and reported by HasProvider.
// The connector follows the provider's accountsChanged events for its lifetime.
func NewConnector(provider Provider) *Connector {
	c := &Connector{provider: provider}
	if provider != nil {
		provider.On(EventAccountsChanged, func(payload json.RawMessage) { c.followAccounts(payload) })
	}
	return c
}

// followAccounts applies an accountsChanged payload to the connection.
// An empty list drops the connection; a new first account replaces the
// address only while connected.
func (c *Connector) followAccounts(payload json.RawMessage) (revoked bool) {
	var accounts []string
	if err := json.Unmarshal(payload, &accounts); err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(accounts) == 0 {
		c.connected = false
		c.address = ""
		return true
	}
	if c.connected {
		c.address = strings.ToLower(accounts[0])
	}
	return false
}

// HasProvider reports whether a wallet provider is available
func (c *Connector) HasProvider() bool {
	return c.provider != nil
}

// Provider returns the underlying provider
func (c *Connector) Provider() Provider {
	return c.provider
}

// Kind reports the wallet kind of the provider
func (c *Connector) Kind() Kind {
	if c.provider == nil {
		return KindOther
	}
	return DetectKind(c.provider)
}

func (c *Connector) request(ctx context.Context, out any, method string, params ...any) error {
	raw, err := c.provider.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Connector) accounts(ctx context.Context, method string) ([]string, error) {
	var accounts []string
	if err := c.request(ctx, &accounts, method); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Connector) requestPermissions(ctx context.Context) error {
	return c.request(ctx, nil, MethodRequestPermissions, PermissionRequest{})
}

func (c *Connector) chainID(ctx context.Context) (int64, error) {
	var hex string
	if err := c.request(ctx, &hex, MethodChainID); err != nil {
		return 0, err
	}
	id, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, fmt.Errorf("decode chain id %q: %w", hex, err)
	}
	return int64(id), nil
}

func (c *Connector) balance(ctx context.Context, address string) (string, error) {
	var hex string
	if err := c.request(ctx, &hex, MethodGetBalance, address, "latest"); err != nil {
		return "", err
	}
	wei, err := hexutil.DecodeBig(hex)
	if err != nil {
		return "", fmt.Errorf("decode balance %q: %w", hex, err)
	}
	return FormatEther(wei), nil
}

// FormatEther renders a wei amount in ether with 4 decimals
func FormatEther(wei *big.Int) string {
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return ether.Text('f', 4)
}

// connectedState reads chain id and balance for address and marks it connected
func (c *Connector) connectedState(ctx context.Context, address string) (State, error) {
	chainID, err := c.chainID(ctx)
	if err != nil {
		return State{}, err
	}
	balance, err := c.balance(ctx, address)
	if err != nil {
		return State{}, err
	}

	address = strings.ToLower(address)
	c.mu.Lock()
	c.connected = true
	c.address = address
	c.mu.Unlock()

	return State{
		IsConnected: true,
		Address:     address,
		ChainID:     &chainID,
		Balance:     &balance,
	}, nil
}

// Connect requests account access. With forceReselect the account picker is
// requested first; when the provider refuses or does not support it the
// connector falls back to a plain eth_requestAccounts.
func (c *Connector) Connect(ctx context.Context, forceReselect bool) (State, error) {
	if c.provider == nil {
		return State{}, x402.ErrNoProvider
	}
	logger := logx.WithContext(ctx)

	if forceReselect {
		if err := c.requestPermissions(ctx); err != nil {
			logger.Infof("permission request failed, falling back to %s: %v", MethodRequestAccounts, err)
		}
	}

	accounts, err := c.accounts(ctx, MethodRequestAccounts)
	if err != nil {
		return State{}, err
	}
	if len(accounts) == 0 {
		return State{}, x402.ErrNoAccounts
	}

	state, err := c.connectedState(ctx, accounts[0])
	if err != nil {
		return State{}, err
	}
	logger.Infof("wallet connected: %s on chain %d", state.Address, *state.ChainID)
	return state, nil
}

// SwitchAccount re-prompts for account permission and fails with
// AccountUnchangedError when the provider hands back the same account.
func (c *Connector) SwitchAccount(ctx context.Context) (State, error) {
	if c.provider == nil {
		return State{}, x402.ErrNoProvider
	}
	kind := c.Kind()
	logger := logx.WithContext(ctx)
	logger.Infof("switching account on %s wallet", kind)

	current, err := c.accounts(ctx, MethodAccounts)
	if err != nil {
		return State{}, err
	}
	var previous string
	if len(current) > 0 {
		previous = current[0]
	}

	if err := c.requestPermissions(ctx); err != nil {
		if errors.Is(err, x402.ErrUserRejected) {
			return State{}, err
		}
		if kind == KindRabby {
			return State{}, fmt.Errorf("%s: %w", kind.SwitchGuidance(), err)
		}
		return State{}, err
	}

	accounts, err := c.accounts(ctx, MethodAccounts)
	if err != nil {
		return State{}, err
	}
	if len(accounts) == 0 {
		return State{}, x402.ErrNoAccounts
	}

	if previous != "" && strings.EqualFold(accounts[0], previous) {
		return State{}, &AccountUnchangedError{Address: strings.ToLower(previous), Kind: kind}
	}

	return c.connectedState(ctx, accounts[0])
}

// Disconnect drops the local wallet handle and asks the provider to revoke
// permissions. Revocation is best effort: most wallets do not support it and
// a failure is only logged.
func (c *Connector) Disconnect(ctx context.Context) {
	c.mu.Lock()
	c.connected = false
	c.address = ""
	c.mu.Unlock()

	if c.provider == nil {
		return
	}
	if err := c.request(ctx, nil, MethodRevokePermissions, PermissionRequest{}); err != nil {
		logx.WithContext(ctx).Infof("wallet does not support %s, disconnect manually from the wallet: %v",
			MethodRevokePermissions, err)
	}
}

// State queries accounts and chain without prompting the user.
// Any failure yields the disconnected state.
func (c *Connector) State(ctx context.Context) State {
	if c.provider == nil {
		return State{}
	}

	accounts, err := c.accounts(ctx, MethodAccounts)
	if err != nil || len(accounts) == 0 {
		return State{}
	}

	chainID, err := c.chainID(ctx)
	if err != nil {
		return State{}
	}

	return State{
		IsConnected: true,
		Address:     strings.ToLower(accounts[0]),
		ChainID:     &chainID,
	}
}

// SwitchToNetwork asks the wallet to switch chains. An unrecognized chain
// (4902) is registered with wallet_addEthereumChain and the switch retried.
func (c *Connector) SwitchToNetwork(ctx context.Context, target evm.NetworkInfo) (bool, error) {
	if c.provider == nil {
		return false, x402.ErrNoProvider
	}

	switchParams := SwitchChainParams{ChainID: target.ChainIDHex}
	err := c.request(ctx, nil, MethodSwitchChain, switchParams)
	if err == nil {
		return true, nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Code != CodeUnrecognizedChain {
		return false, err
	}

	logx.WithContext(ctx).Infof("chain %s unknown to wallet, adding it", target.Name)
	addParams := AddChainParams{
		ChainID:   target.ChainIDHex,
		ChainName: target.Name,
		NativeCurrency: CurrencyParam{
			Name:     target.NativeCurrency.Name,
			Symbol:   target.NativeCurrency.Symbol,
			Decimals: target.NativeCurrency.Decimals,
		},
		RPCURLs: []string{target.RPCURL},
	}
	if target.Explorer != "" {
		addParams.BlockExplorerURLs = []string{target.Explorer}
	}
	if err := c.request(ctx, nil, MethodAddChain, addParams); err != nil {
		return false, &ChainSwitchError{Network: target.Name, Added: true, Err: err}
	}

	if err := c.request(ctx, nil, MethodSwitchChain, switchParams); err != nil {
		return false, &ChainSwitchError{Network: target.Name, Err: err}
	}
	return true, nil
}

// OnChange calls cb with a fresh State on every account or chain change.
// The connector itself is already up to date when cb runs.
// The returned unsubscribe func is safe to call more than once.
func (c *Connector) OnChange(ctx context.Context, cb func(State)) (unsubscribe func()) {
	if c.provider == nil {
		return func() {}
	}

	removeAccounts := c.provider.On(EventAccountsChanged, func(payload json.RawMessage) {
		if c.followAccounts(payload) {
			cb(State{})
			return
		}
		cb(c.State(ctx))
	})
	removeChain := c.provider.On(EventChainChanged, func(json.RawMessage) {
		cb(c.State(ctx))
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			removeAccounts()
			removeChain()
		})
	}
}

// IsConnected reports whether Connect or SwitchAccount succeeded since the last Disconnect
func (c *Connector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Address returns the connected account, lowercase
func (c *Connector) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// SetAccount updates the handle after an accountsChanged event
func (c *Connector) SetAccount(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = strings.ToLower(address)
	c.connected = address != ""
}

// SignTypedData signs EIP-712 data through eth_signTypedData_v4
func (c *Connector) SignTypedData(
	ctx context.Context,
	domain evm.TypedDataDomain,
	types map[string][]evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	if c.provider == nil {
		return nil, x402.ErrNoProvider
	}
	address := c.Address()
	if address == "" {
		return nil, x402.ErrWalletNotConnected
	}

	typedData := evm.ToAPITypedData(domain, types, primaryType, message)
	encoded, err := json.Marshal(typedData)
	if err != nil {
		return nil, fmt.Errorf("encode typed data: %w", err)
	}

	var signature string
	if err := c.request(ctx, &signature, MethodSignTypedDataV4, address, string(encoded)); err != nil {
		return nil, err
	}
	return hexutil.Decode(signature)
}

// ReadContract performs an ABI encoded eth_call against the provider's current chain
func (c *Connector) ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error) {
	if c.provider == nil {
		return nil, x402.ErrNoProvider
	}

	data, err := evm.PackCall(abi, functionName, args...)
	if err != nil {
		return nil, err
	}

	var output string
	call := CallParams{From: c.Address(), To: address, Data: hexutil.Encode(data)}
	if err := c.request(ctx, &output, MethodCall, call, "latest"); err != nil {
		return nil, err
	}

	raw, err := hexutil.Decode(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", evm.ErrBadData, err)
	}
	return evm.UnpackCall(abi, functionName, raw)
}
