package evm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CreateNonce generates a random 32-byte nonce
func CreateNonce() (string, error) {
	nonce := make([]byte, 32)
	_, err := rand.Read(nonce)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return "0x" + hex.EncodeToString(nonce), nil
}

// NormalizeAddress ensures an Ethereum address is in the correct format
func NormalizeAddress(address string) string {
	addr := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(address)), "0x")
	return "0x" + addr
}

// ChecksumAddress returns the EIP-55 form of a hex address
func ChecksumAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// IsValidAddress checks if a string is a valid Ethereum address
func IsValidAddress(address string) bool {
	addr := strings.TrimPrefix(address, "0x")
	if len(addr) != 40 {
		return false
	}
	_, err := hex.DecodeString(addr)
	return err == nil
}

// ParseAmount converts a decimal string amount to atomic units based on token decimals
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	parts := strings.Split(strings.TrimSpace(amount), ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	intPart, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer part: %s", parts[0])
	}

	decPart := new(big.Int)
	if len(parts) == 2 && parts[1] != "" {
		// Pad or truncate to token decimals
		decStr := parts[1]
		if len(decStr) > decimals {
			decStr = decStr[:decimals]
		} else {
			decStr += strings.Repeat("0", decimals-len(decStr))
		}

		decPart, ok = new(big.Int).SetString(decStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid decimal part: %s", parts[1])
		}
	}

	multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	result := new(big.Int).Mul(intPart, multiplier)
	result.Add(result, decPart)

	return result, nil
}

// ParseAtomicAmount parses a non-negative base-10 integer such as maxAmountRequired
func ParseAtomicAmount(amount string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid atomic amount: %q", amount)
	}
	return value, nil
}

func splitAmount(amount *big.Int, decimals int) (string, string) {
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quotient, remainder := new(big.Int).DivMod(amount, divisor, new(big.Int))

	decStr := remainder.String()
	if len(decStr) < decimals {
		decStr = strings.Repeat("0", decimals-len(decStr)) + decStr
	}
	return quotient.String(), decStr
}

// FormatAmount converts an atomic amount to a decimal string without trailing zeros
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}

	whole, frac := splitAmount(amount, decimals)
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// FormatAmountFixed converts an atomic amount to a decimal string with exactly
// decimals fractional digits, e.g. 150000 at 6 decimals is "0.150000".
func FormatAmountFixed(amount *big.Int, decimals int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	if decimals <= 0 {
		return amount.String()
	}

	whole, frac := splitAmount(amount, decimals)
	return whole + "." + frac
}

// CreateValidityWindow returns validAfter = now and validBefore = now + seconds
func CreateValidityWindow(now time.Time, seconds int64) (validAfter, validBefore *big.Int) {
	if seconds <= 0 {
		seconds = DefaultValidityPeriod
	}
	validAfter = big.NewInt(now.Unix())
	validBefore = big.NewInt(now.Unix() + seconds)
	return validAfter, validBefore
}

// HexToBytes converts a hex string to bytes
func HexToBytes(hexStr string) ([]byte, error) {
	cleaned := strings.TrimPrefix(hexStr, "0x")
	return hex.DecodeString(cleaned)
}
