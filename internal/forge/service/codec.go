// Package service provides the canonical payload encoding and HMAC signing used by
// the token forge.
package service

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
)

// Canonicalize normalizes a payload before encoding: UTC timestamps at second
// precision and a non-nil metadata map.
func Canonicalize(p *forgeDomain.Payload) {
	p.IssuedAt = p.IssuedAt.UTC().Truncate(time.Second)
	p.ExpiresAt = p.ExpiresAt.UTC().Truncate(time.Second)
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
}

// EncodePayload returns the canonical JSON form of p: keys in lexical order, no
// insignificant whitespace.
func EncodePayload(p *forgeDomain.Payload) ([]byte, error) {
	Canonicalize(p)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, forgeDomain.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Seal builds an envelope from the canonical payload bytes, its signature and salt.
func Seal(raw, signature, salt []byte) forgeDomain.Envelope {
	return forgeDomain.Envelope{
		Token:         base64.RawURLEncoding.EncodeToString(raw),
		Signature:     hex.EncodeToString(signature),
		Nonce:         base64.RawURLEncoding.EncodeToString(salt),
		Algorithm:     forgeDomain.AlgorithmHMACSHA384,
		KeyDerivation: forgeDomain.KeyDerivationHKDFSHA384,
	}
}

// Opened is a decoded envelope. Raw holds the payload bytes exactly as received,
// which is what the signature covers.
type Opened struct {
	Raw       []byte
	Payload   forgeDomain.Payload
	Signature []byte
	Salt      []byte
}

// Open decodes an envelope. Any failure means the signature cannot be checked under
// the declared scheme, so callers report it as a bad signature.
func Open(env forgeDomain.Envelope) (*Opened, error) {
	if env.Algorithm != forgeDomain.AlgorithmHMACSHA384 ||
		env.KeyDerivation != forgeDomain.KeyDerivationHKDFSHA384 {
		return nil, fmt.Errorf("unsupported scheme %q/%q", env.Algorithm, env.KeyDerivation)
	}

	raw, err := decodeBase64URL(env.Token)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("token is not base64url")
	}
	salt, err := decodeBase64URL(env.Nonce)
	if err != nil || len(salt) != forgeDomain.SaltSize {
		return nil, fmt.Errorf("nonce must be %d base64url bytes", forgeDomain.SaltSize)
	}
	signature, err := hex.DecodeString(env.Signature)
	if err != nil || len(signature) != SignatureSize {
		return nil, fmt.Errorf("signature must be %d hex bytes", SignatureSize)
	}

	var payload forgeDomain.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("token is not a payload")
	}
	if payload.Provider == "" || payload.Version == "" || payload.TTLSeconds <= 0 ||
		payload.IssuedAt.IsZero() || payload.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("payload is missing required fields")
	}

	return &Opened{Raw: raw, Payload: payload, Signature: signature, Salt: salt}, nil
}

// RecoverProvider reads the provider field from a token that failed to open, as long
// as the damage lies after it. Returns "" when it cannot.
func RecoverProvider(token string) string {
	token = strings.TrimRight(token, "=")
	if i := strings.IndexFunc(token, func(r rune) bool { return !isBase64URL(r) }); i >= 0 {
		token = token[:i]
	}
	raw, err := base64.RawURLEncoding.DecodeString(token[:len(token)/4*4])
	if err != nil {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return ""
		}
		if key == "provider" {
			var provider string
			if err := dec.Decode(&provider); err != nil {
				return ""
			}
			return provider
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return ""
		}
	}
	return ""
}

func isBase64URL(r rune) bool {
	return r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_'
}

// decodeBase64URL accepts base64url with or without padding. Trailing bits must be
// zero so every encoded form maps to exactly one byte string.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(s, "="))
}
