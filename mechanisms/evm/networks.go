package evm

import (
	"sort"
	"strconv"
	"strings"
)

var (
	// networkToChainID maps x402 network names to chain ids
	networkToChainID = map[string]int64{
		"base-sepolia":   84532,
		"avalanche-fuji": 43113,
		"base":           8453,
		"avalanche":      43114,
		"ethereum":       1,
		"sepolia":        11155111,
		"polygon":        137,
		"polygon-mumbai": 80001,
	}

	// networkInfos holds the full descriptor of every registered chain
	networkInfos = map[int64]NetworkInfo{
		84532: {
			Network:        "base-sepolia",
			Name:           "Base Sepolia",
			ChainID:        84532,
			ChainIDHex:     "0x14a34",
			RPCURL:         "https://sepolia.base.org",
			Explorer:       "https://sepolia-explorer.base.org/",
			NativeCurrency: NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: NativeDecimals},
		},
		43113: {
			Network:        "avalanche-fuji",
			Name:           "Avalanche Fuji",
			ChainID:        43113,
			ChainIDHex:     "0xa869",
			RPCURL:         "https://api.avax-test.network/ext/bc/C/rpc",
			Explorer:       "https://testnet.snowtrace.io/",
			NativeCurrency: NativeCurrency{Name: "AVAX", Symbol: "AVAX", Decimals: NativeDecimals},
		},
		8453: {
			Network:        "base",
			Name:           "Base",
			ChainID:        8453,
			ChainIDHex:     "0x2105",
			RPCURL:         "https://mainnet.base.org",
			Explorer:       "https://basescan.org/",
			NativeCurrency: NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: NativeDecimals},
		},
		43114: {
			Network:        "avalanche",
			Name:           "Avalanche",
			ChainID:        43114,
			ChainIDHex:     "0xa86a",
			RPCURL:         "https://api.avax.network/ext/bc/C/rpc",
			Explorer:       "https://snowtrace.io/",
			NativeCurrency: NativeCurrency{Name: "AVAX", Symbol: "AVAX", Decimals: NativeDecimals},
		},
		1: {
			Network:        "ethereum",
			Name:           "Ethereum Mainnet",
			ChainID:        1,
			ChainIDHex:     "0x1",
			RPCURL:         "https://eth.llamarpc.com",
			Explorer:       "https://etherscan.io/",
			NativeCurrency: NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: NativeDecimals},
		},
		11155111: {
			Network:        "sepolia",
			Name:           "Sepolia",
			ChainID:        11155111,
			ChainIDHex:     "0xaa36a7",
			RPCURL:         "https://rpc.sepolia.org",
			Explorer:       "https://sepolia.etherscan.io/",
			NativeCurrency: NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: NativeDecimals},
		},
		137: {
			Network:        "polygon",
			Name:           "Polygon",
			ChainID:        137,
			ChainIDHex:     "0x89",
			RPCURL:         "https://polygon-rpc.com",
			Explorer:       "https://polygonscan.com/",
			NativeCurrency: NativeCurrency{Name: "MATIC", Symbol: "MATIC", Decimals: NativeDecimals},
		},
		80001: {
			Network:        "polygon-mumbai",
			Name:           "Polygon Mumbai",
			ChainID:        80001,
			ChainIDHex:     "0x13881",
			RPCURL:         "https://rpc-mumbai.maticvigil.com",
			Explorer:       "https://mumbai.polygonscan.com/",
			NativeCurrency: NativeCurrency{Name: "MATIC", Symbol: "MATIC", Decimals: NativeDecimals},
		},
	}

	// defaultAssets is the USDC deployment per network
	defaultAssets = map[string]AssetInfo{
		"base-sepolia":   {Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Name: "USDC", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
		"base":           {Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Name: "USD Coin", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
		"ethereum":       {Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Name: "USD Coin", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
		"sepolia":        {Address: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", Name: "USDC", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
		"avalanche-fuji": {Address: "0x5425890298aed601595a70AB815c96711a31Bc65", Name: "USD Coin", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
		"avalanche":      {Address: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Name: "USD Coin", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
		"polygon":        {Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Name: "USD Coin", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
		"polygon-mumbai": {Address: "0x9999f7Fea5938fD3b1E26A12c3f2fb024e194f97", Name: "USDC", Version: "2", Symbol: "USDC", Decimals: DefaultDecimals},
	}
)

// normalizeNetwork lowercases and trims a network name
func normalizeNetwork(network string) string {
	return strings.ToLower(strings.TrimSpace(network))
}

// ChainIDFromNetworkName returns the chain id registered for a network name.
// Lookup is case-insensitive and ignores surrounding whitespace. CAIP-2
// identifiers ("eip155:84532") resolve when the chain id is registered.
func ChainIDFromNetworkName(network string) (int64, bool) {
	name := normalizeNetwork(network)
	if id, ok := networkToChainID[name]; ok {
		return id, true
	}

	if strings.HasPrefix(name, "eip155:") {
		id, err := strconv.ParseInt(strings.TrimPrefix(name, "eip155:"), 10, 64)
		if err != nil {
			return 0, false
		}
		if _, ok := networkInfos[id]; ok {
			return id, true
		}
	}

	return 0, false
}

// InfoByChainID returns the descriptor of a registered chain
func InfoByChainID(chainID int64) (NetworkInfo, bool) {
	info, ok := networkInfos[chainID]
	return info, ok
}

// InfoByNetworkName returns the descriptor for a network name
func InfoByNetworkName(network string) (NetworkInfo, bool) {
	chainID, ok := ChainIDFromNetworkName(network)
	if !ok {
		return NetworkInfo{}, false
	}
	return InfoByChainID(chainID)
}

// IsSupported checks if the network is in the registry
func IsSupported(network string) bool {
	_, ok := ChainIDFromNetworkName(network)
	return ok
}

// SupportedNetworks returns the registered network names in sorted order
func SupportedNetworks() []string {
	names := make([]string, 0, len(networkToChainID))
	for name := range networkToChainID {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainIDHex returns the 0x-prefixed chain id of a network
func ChainIDHex(network string) (string, bool) {
	info, ok := InfoByNetworkName(network)
	if !ok {
		return "", false
	}
	return info.ChainIDHex, true
}

// DisplayName returns the human readable chain name, or the input when unknown
func DisplayName(network string) string {
	info, ok := InfoByNetworkName(network)
	if !ok {
		return network
	}
	return info.Name
}

// DefaultAsset returns the USDC deployment on a network
func DefaultAsset(network string) (AssetInfo, bool) {
	info, ok := InfoByNetworkName(network)
	if !ok {
		return AssetInfo{}, false
	}
	asset, ok := defaultAssets[info.Network]
	return asset, ok
}
