package evm

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignatureLength is returned for signatures that are not 65 bytes
var ErrInvalidSignatureLength = errors.New("invalid EOA signature length: expected 65 bytes")

// RecoverEOAAddress recovers the signer of a 32-byte hash.
// Ethereum style v values (27/28) are accepted alongside raw 0/1.
func RecoverEOAAddress(hash []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, ErrInvalidSignatureLength
	}

	// copy so the caller's signature keeps its v
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifyEOASignature checks that signature over hash was produced by expectedAddress
func VerifyEOASignature(
	hash []byte,
	signature []byte,
	expectedAddress common.Address,
) (bool, error) {
	recovered, err := RecoverEOAAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == expectedAddress, nil
}
