package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TransferWithAuthorizationTypes returns the EIP-712 type set for EIP-3009 transfers
func TransferWithAuthorizationTypes() map[string][]TypedDataField {
	return map[string][]TypedDataField{
		"EIP712Domain":                       append([]TypedDataField(nil), eip712DomainFields...),
		PrimaryTypeTransferWithAuthorization: append([]TypedDataField(nil), transferWithAuthorizationFields...),
	}
}

// ToAPITypedData converts typed data into the go-ethereum representation.
// The EIP712Domain type is added when the caller leaves it out.
func ToAPITypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) apitypes.TypedData {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}

	for typeName, fields := range types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{Name: field.Name, Type: field.Type}
		}
		typedData.Types[typeName] = typedFields
	}

	if _, exists := typedData.Types["EIP712Domain"]; !exists {
		domainFields := make([]apitypes.Type, len(eip712DomainFields))
		for i, field := range eip712DomainFields {
			domainFields[i] = apitypes.Type{Name: field.Name, Type: field.Type}
		}
		typedData.Types["EIP712Domain"] = domainFields
	}

	return typedData
}

// HashTypedData computes keccak256("\x19\x01" || domainSeparator || structHash)
func HashTypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	typedData := ToAPITypedData(domain, types, primaryType, message)

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// AuthorizationDomain builds the EIP-712 domain of an EIP-3009 token
func AuthorizationDomain(chainID *big.Int, verifyingContract, tokenName, tokenVersion string) TypedDataDomain {
	return TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// HashEIP3009Authorization hashes a TransferWithAuthorization message
func HashEIP3009Authorization(
	authorization ExactEIP3009Authorization,
	chainID *big.Int,
	verifyingContract string,
	tokenName string,
	tokenVersion string,
) ([]byte, error) {
	if _, ok := new(big.Int).SetString(authorization.Value, 10); !ok {
		return nil, fmt.Errorf("invalid authorization value: %q", authorization.Value)
	}
	nonce, err := HexToBytes(authorization.Nonce)
	if err != nil || len(nonce) != 32 {
		return nil, fmt.Errorf("invalid authorization nonce: %q", authorization.Nonce)
	}

	return HashTypedData(
		AuthorizationDomain(chainID, verifyingContract, tokenName, tokenVersion),
		TransferWithAuthorizationTypes(),
		PrimaryTypeTransferWithAuthorization,
		authorization.ToMessage(),
	)
}
