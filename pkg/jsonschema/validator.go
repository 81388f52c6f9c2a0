// Package jsonschema validates outgoing retry and error envelopes
// against the two JSON Schema documents the service publishes
// (spec.md §6): a message that fails validation must never be
// produced onto the bus.
package jsonschema

import (
	"bytes"
	"fmt"
	"strings"

	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	retryURI = "urn:changeprop:schema:retry-envelope"
	errorURI = "urn:changeprop:schema:error-envelope"
)

// Validator holds the compiled retry and error envelope schemas.
type Validator struct {
	retry *jschema.Schema
	error *jschema.Schema
}

// New compiles the embedded retry/error schemas. It panics on failure
// since a broken embedded schema is a build-time defect, not a
// runtime condition.
func New() *Validator {
	compiler := jschema.NewCompiler()

	retryDoc, err := jschema.UnmarshalJSON(strings.NewReader(RetryEnvelopeSchema))
	if err != nil {
		panic(fmt.Sprintf("jsonschema: parsing retry envelope schema: %v", err))
	}
	if err := compiler.AddResource(retryURI, retryDoc); err != nil {
		panic(fmt.Sprintf("jsonschema: adding retry envelope schema: %v", err))
	}

	errorDoc, err := jschema.UnmarshalJSON(strings.NewReader(ErrorEnvelopeSchema))
	if err != nil {
		panic(fmt.Sprintf("jsonschema: parsing error envelope schema: %v", err))
	}
	if err := compiler.AddResource(errorURI, errorDoc); err != nil {
		panic(fmt.Sprintf("jsonschema: adding error envelope schema: %v", err))
	}

	retry, err := compiler.Compile(retryURI)
	if err != nil {
		panic(fmt.Sprintf("jsonschema: compiling retry envelope schema: %v", err))
	}
	errSchema, err := compiler.Compile(errorURI)
	if err != nil {
		panic(fmt.Sprintf("jsonschema: compiling error envelope schema: %v", err))
	}

	return &Validator{retry: retry, error: errSchema}
}

// ValidateRetryEnvelope checks encoded retry envelope JSON before it is
// produced onto a change-prop.retry.<rule_name> topic.
func (v *Validator) ValidateRetryEnvelope(data []byte) error {
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("jsonschema: decoding retry envelope: %w", err)
	}
	if err := v.retry.Validate(inst); err != nil {
		return fmt.Errorf("retry envelope failed schema validation: %w", err)
	}
	return nil
}

// ValidateErrorEnvelope checks encoded error envelope JSON before it is
// produced onto change-prop.error.
func (v *Validator) ValidateErrorEnvelope(data []byte) error {
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("jsonschema: decoding error envelope: %w", err)
	}
	if err := v.error.Validate(inst); err != nil {
		return fmt.Errorf("error envelope failed schema validation: %w", err)
	}
	return nil
}
