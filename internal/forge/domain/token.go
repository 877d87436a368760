// Package domain defines the token payload, the signed envelope handed to providers,
// and the result of validating one.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is written into every payload and bound into key derivation.
const ProtocolVersion = "1"

// Algorithm identifiers carried by every envelope.
const (
	AlgorithmHMACSHA384     = "HMAC-SHA384"
	KeyDerivationHKDFSHA384 = "HKDF-SHA384"
)

// SaltSize is the length of the per-token HKDF salt in bytes.
const SaltSize = 32

// Payload is the signed body of a token. Fields are declared in lexical JSON order so
// the encoding is canonical.
type Payload struct {
	ExpiresAt  time.Time         `json:"expires_at"`
	IssuedAt   time.Time         `json:"issued_at"`
	Metadata   map[string]string `json:"metadata"`
	Provider   string            `json:"provider"`
	TokenID    uuid.UUID         `json:"token_id"`
	TTLSeconds int64             `json:"ttl_seconds"`
	Version    string            `json:"version"`
}

// TTL returns the payload lifetime.
func (p *Payload) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// IsExpired reports whether now is past expires_at.
func (p *Payload) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// RenewableAt returns the moment the last tenth of the lifetime begins.
func (p *Payload) RenewableAt() time.Time {
	return p.ExpiresAt.Add(-p.TTL() / 10)
}

// Envelope is the wire form of a minted token.
type Envelope struct {
	Token         string `json:"token"`
	Signature     string `json:"signature"`
	Nonce         string `json:"nonce"`
	Algorithm     string `json:"algorithm"`
	KeyDerivation string `json:"key_derivation"`
}

// MintInput contains the parameters for minting a token.
type MintInput struct {
	Provider       string
	ResonanceScore int
	Environment    string
	Metadata       map[string]string
}

// RenewInput contains the parameters for renewing a token. Nil or empty fields fall
// back to the health signal source and the default environment.
type RenewInput struct {
	Envelope       Envelope
	ResonanceScore *int
	Environment    string
}

// MintOutput is a freshly minted envelope together with its decoded payload.
type MintOutput struct {
	Envelope Envelope
	Payload  Payload
	Category string
	Epoch    uint64
}
