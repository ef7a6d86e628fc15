package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
)

// paymentRequiredSchema describes a 402 body as sent by x402 v1 servers.
// accepts is optional because the generation backend may answer with only
// its pricing summary; the signer reports an empty list itself.
const paymentRequiredSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"x402Version": {"type": "integer", "minimum": 1},
		"error": {"type": "string"},
		"accepts": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["scheme", "network", "maxAmountRequired", "payTo", "asset"],
				"properties": {
					"scheme": {"type": "string", "minLength": 1},
					"network": {"type": "string", "minLength": 1},
					"maxAmountRequired": {"type": "string", "pattern": "^[0-9]+$"},
					"resource": {"type": "string"},
					"description": {"type": "string"},
					"mimeType": {"type": "string"},
					"payTo": {"type": "string", "minLength": 1},
					"maxTimeoutSeconds": {"type": "integer", "minimum": 0},
					"asset": {"type": "string", "minLength": 1},
					"extra": {
						"type": ["object", "null"],
						"properties": {
							"name": {"type": "string"},
							"version": {"type": "string"}
						}
					}
				}
			}
		},
		"price": {"type": "number"},
		"currency": {"type": "string"},
		"provider": {"type": "string"},
		"providerName": {"type": "string"},
		"x402": {"type": "object"}
	}
}`

var (
	compiledSchema     *gojsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

func paymentRequiredValidator() (*gojsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		compiledSchema, compiledSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(paymentRequiredSchema))
	})
	return compiledSchema, compiledSchemaErr
}

// ValidatePaymentRequired checks a 402 body against the challenge schema.
// Errors wrap x402.ErrInvalidRequirements.
func ValidatePaymentRequired(data []byte) error {
	schema, err := paymentRequiredValidator()
	if err != nil {
		return fmt.Errorf("failed to compile payment required schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", x402.ErrInvalidRequirements, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", x402.ErrInvalidRequirements, strings.Join(problems, "; "))
}
