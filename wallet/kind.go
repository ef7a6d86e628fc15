package wallet

// Kind identifies the wallet implementation behind a provider
type Kind int

const (
	KindOther Kind = iota
	KindMetaMask
	KindRabby
)

func (k Kind) String() string {
	switch k {
	case KindRabby:
		return "rabby"
	case KindMetaMask:
		return "metamask"
	default:
		return "other"
	}
}

// KindReporter is implemented by providers that can identify their wallet
type KindReporter interface {
	IsRabby() bool
	IsMetaMask() bool
}

// DetectKind reports the wallet kind; providers without a KindReporter are KindOther.
// Rabby also sets the MetaMask flag, so it is checked first.
func DetectKind(p Provider) Kind {
	r, ok := p.(KindReporter)
	if !ok {
		return KindOther
	}
	if r.IsRabby() {
		return KindRabby
	}
	if r.IsMetaMask() {
		return KindMetaMask
	}
	return KindOther
}

// SwitchGuidance tells the user how to change account when the picker did not
func (k Kind) SwitchGuidance() string {
	switch k {
	case KindRabby:
		return "click the Rabby icon and select another account"
	default:
		return "select a different account in your wallet"
	}
}
