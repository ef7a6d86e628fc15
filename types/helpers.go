package types

import "strings"

// FindMatchingRequirements returns the accepted option a payload was made for:
// the first one with the same scheme and network.
func FindMatchingRequirements(payload PaymentPayload, accepts []PaymentRequirements) (PaymentRequirements, bool) {
	for _, req := range accepts {
		if req.Scheme == payload.Scheme && strings.EqualFold(req.Network, payload.Network) {
			return req, true
		}
	}
	return PaymentRequirements{}, false
}
