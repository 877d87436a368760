package dto

import (
	"time"

	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
)

// TokenResponse is a minted envelope plus the facts a provider needs to schedule renewal.
type TokenResponse struct {
	Token         string    `json:"token"`
	Signature     string    `json:"signature"`
	Nonce         string    `json:"nonce"`
	Algorithm     string    `json:"algorithm"`
	KeyDerivation string    `json:"key_derivation"`
	TokenID       string    `json:"token_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	TTLSeconds    int64     `json:"ttl_seconds"`
	RiskCategory  string    `json:"risk_category"`
}

// MapMintOutputToResponse converts a mint output to an API response.
func MapMintOutputToResponse(output *forgeDomain.MintOutput) TokenResponse {
	return TokenResponse{
		Token:         output.Envelope.Token,
		Signature:     output.Envelope.Signature,
		Nonce:         output.Envelope.Nonce,
		Algorithm:     output.Envelope.Algorithm,
		KeyDerivation: output.Envelope.KeyDerivation,
		TokenID:       output.Payload.TokenID.String(),
		ExpiresAt:     output.Payload.ExpiresAt,
		TTLSeconds:    output.Payload.TTLSeconds,
		RiskCategory:  output.Category,
	}
}

// PayloadResponse is the decoded payload of a valid token.
type PayloadResponse struct {
	TokenID    string            `json:"token_id"`
	Provider   string            `json:"provider"`
	Version    string            `json:"version"`
	IssuedAt   time.Time         `json:"issued_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	TTLSeconds int64             `json:"ttl_seconds"`
	Metadata   map[string]string `json:"metadata"`
}

// ValidationResponse reports whether a token is valid. The payload is only returned
// for valid tokens.
type ValidationResponse struct {
	Valid   bool             `json:"valid"`
	Reason  string           `json:"reason,omitempty"`
	Payload *PayloadResponse `json:"payload,omitempty"`
}

// MapValidationResultToResponse converts a validation result to an API response.
func MapValidationResultToResponse(result forgeDomain.ValidationResult) ValidationResponse {
	if !result.Valid || result.Payload == nil {
		return ValidationResponse{Valid: false, Reason: string(result.Reason)}
	}
	p := result.Payload
	return ValidationResponse{
		Valid: true,
		Payload: &PayloadResponse{
			TokenID:    p.TokenID.String(),
			Provider:   p.Provider,
			Version:    p.Version,
			IssuedAt:   p.IssuedAt,
			ExpiresAt:  p.ExpiresAt,
			TTLSeconds: p.TTLSeconds,
			Metadata:   p.Metadata,
		},
	}
}
