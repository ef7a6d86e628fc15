package evm

const (
	// Scheme identifier
	SchemeExact = "exact"

	// Default token decimals for USDC
	DefaultDecimals = 6

	// NativeDecimals is the decimals of every native currency in the registry
	NativeDecimals = 18

	// DefaultValidityPeriod is used when a challenge omits maxTimeoutSeconds
	DefaultValidityPeriod = 600 // seconds

	// EIP-712 domain defaults applied when the challenge carries no extra metadata
	DefaultTokenName    = "USD Coin"
	DefaultTokenVersion = "2"

	// DefaultTokenSymbol is used for human readable amounts
	DefaultTokenSymbol = "USDC"

	// PrimaryTypeTransferWithAuthorization is the EIP-3009 typed data primary type
	PrimaryTypeTransferWithAuthorization = "TransferWithAuthorization"

	// FunctionBalanceOf is the ERC-20 read used for the pre-payment balance check
	FunctionBalanceOf = "balanceOf"
)

var (
	// ERC20BalanceOfABI is the minimal ERC-20 surface read by the client
	ERC20BalanceOfABI = []byte(`[
		{
			"inputs": [{"name": "account", "type": "address"}],
			"name": "balanceOf",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// eip712DomainFields is the domain layout used by EIP-3009 tokens
	eip712DomainFields = []TypedDataField{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}

	// transferWithAuthorizationFields must keep this order; it is part of the type hash
	transferWithAuthorizationFields = []TypedDataField{
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	}
)
