package x402

import "errors"

// Sentinel errors for wallet, payment and API operations.
// Packages return richer typed errors that match these through errors.Is.
var (
	// ErrNoProvider indicates no wallet provider is available.
	ErrNoProvider = errors.New("x402: no wallet provider found, install MetaMask, Rabby or Core Wallet")

	// ErrNoAccounts indicates the provider granted access but returned no accounts.
	ErrNoAccounts = errors.New("x402: no account was selected in the wallet")

	// ErrUserRejected indicates the user dismissed or rejected a wallet prompt.
	ErrUserRejected = errors.New("x402: request cancelled in the wallet")

	// ErrAccountUnchanged indicates an account switch returned the same account.
	ErrAccountUnchanged = errors.New("x402: wallet account did not change")

	// ErrWalletNotConnected indicates a payment was requested without a connected wallet.
	ErrWalletNotConnected = errors.New("x402: wallet not connected, connect your wallet to pay")

	// ErrNoAcceptedScheme indicates the payment challenge lists no accepted payment options.
	ErrNoAcceptedScheme = errors.New("x402: no payment methods available")

	// ErrUnsupportedNetwork indicates the challenge targets a network outside the registry.
	ErrUnsupportedNetwork = errors.New("x402: unsupported network")

	// ErrInsufficientBalance indicates the token balance is below the required amount.
	ErrInsufficientBalance = errors.New("x402: insufficient balance")

	// ErrContractNotFound indicates the asset contract does not answer on the connected chain.
	ErrContractNotFound = errors.New("x402: token contract not found on network")

	// ErrSignatureMismatch indicates the recovered signer differs from the wallet address.
	ErrSignatureMismatch = errors.New("x402: signature is not valid, addresses do not match")

	// ErrInvalidAmount indicates an amount string that is not a base-10 integer.
	ErrInvalidAmount = errors.New("x402: invalid amount")

	// ErrAmountExceeded indicates the challenge asks for more than the configured ceiling.
	ErrAmountExceeded = errors.New("x402: payment amount exceeds per-call limit")

	// ErrPaymentRequired indicates the server answered 402 Payment Required.
	ErrPaymentRequired = errors.New("x402: payment required")

	// ErrPaymentRejected indicates the server still required payment after a paid retry.
	ErrPaymentRejected = errors.New("x402: payment was not accepted by the server")

	// ErrAPI indicates a non-2xx response other than 402.
	ErrAPI = errors.New("x402: api error")

	// ErrMalformedHeader indicates the X-PAYMENT header could not be decoded.
	ErrMalformedHeader = errors.New("x402: malformed payment header")

	// ErrInvalidRequirements indicates the 402 body failed validation.
	ErrInvalidRequirements = errors.New("x402: invalid payment requirements")
)

// VerifyError describes why a payment payload failed offline verification.
type VerifyError struct {
	// Reason is a machine readable code such as "recipient_mismatch".
	Reason string

	// Payer is the authorization signer, when known.
	Payer string

	// Network is the network named by the requirements.
	Network string

	// Err is the underlying error.
	Err error
}

// NewVerifyError creates a VerifyError.
func NewVerifyError(reason, payer, network string, err error) *VerifyError {
	return &VerifyError{Reason: reason, Payer: payer, Network: network, Err: err}
}

// Error implements the error interface.
func (e *VerifyError) Error() string {
	if e.Err != nil {
		return "x402: verification failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "x402: verification failed: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *VerifyError) Unwrap() error {
	return e.Err
}
