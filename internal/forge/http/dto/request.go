// Package dto provides data transfer objects for the token endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
	customValidation "github.com/allisson/dominion/internal/validation"
)

// MintTokenRequest contains the parameters for minting a token.
type MintTokenRequest struct {
	Provider       string            `json:"provider"`
	ResonanceScore *int              `json:"resonance_score"`
	Environment    string            `json:"environment"`
	Metadata       map[string]string `json:"metadata"`
}

// Validate checks if the mint request is valid. Metadata limits are enforced by the gate.
func (r *MintTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Provider,
			validation.Required,
			customValidation.NotBlank,
			customValidation.ProviderName,
		),
		validation.Field(&r.ResonanceScore,
			validation.NotNil,
			customValidation.ResonanceScore,
		),
		validation.Field(&r.Environment,
			customValidation.NoWhitespace,
			validation.Length(0, 32),
		),
	)
}

// ToDomain converts the request to a mint input. Validate must have passed.
func (r *MintTokenRequest) ToDomain() *forgeDomain.MintInput {
	return &forgeDomain.MintInput{
		Provider:       r.Provider,
		ResonanceScore: *r.ResonanceScore,
		Environment:    r.Environment,
		Metadata:       r.Metadata,
	}
}

// EnvelopeRequest is a token envelope as presented by a provider.
type EnvelopeRequest struct {
	Token         string `json:"token"`
	Signature     string `json:"signature"`
	Nonce         string `json:"nonce"`
	Algorithm     string `json:"algorithm"`
	KeyDerivation string `json:"key_derivation"`
}

// Validate checks that every envelope field is present. Encoding is left to the forge,
// which reports a damaged envelope as a bad signature. It has a value receiver so
// nested envelopes are validated as struct fields.
func (r EnvelopeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Signature, validation.Required),
		validation.Field(&r.Nonce, validation.Required),
		validation.Field(&r.Algorithm, validation.Required),
		validation.Field(&r.KeyDerivation, validation.Required),
	)
}

// ToDomain converts the request to an envelope.
func (r EnvelopeRequest) ToDomain() forgeDomain.Envelope {
	return forgeDomain.Envelope{
		Token:         r.Token,
		Signature:     r.Signature,
		Nonce:         r.Nonce,
		Algorithm:     r.Algorithm,
		KeyDerivation: r.KeyDerivation,
	}
}

// RenewTokenRequest contains the envelope to renew and optional TTL inputs.
type RenewTokenRequest struct {
	Envelope       EnvelopeRequest `json:"envelope"`
	ResonanceScore *int            `json:"resonance_score"`
	Environment    string          `json:"environment"`
}

// Validate checks if the renew request is valid.
func (r *RenewTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Envelope),
		validation.Field(&r.ResonanceScore, customValidation.ResonanceScore),
		validation.Field(&r.Environment,
			customValidation.NoWhitespace,
			validation.Length(0, 32),
		),
	)
}

// ToDomain converts the request to a renew input.
func (r *RenewTokenRequest) ToDomain() *forgeDomain.RenewInput {
	return &forgeDomain.RenewInput{
		Envelope:       r.Envelope.ToDomain(),
		ResonanceScore: r.ResonanceScore,
		Environment:    r.Environment,
	}
}
