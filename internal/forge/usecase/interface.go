package usecase

import (
	"context"
	"time"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
	"github.com/allisson/dominion/internal/gate"
	keysService "github.com/allisson/dominion/internal/keys/service"
	"github.com/allisson/dominion/internal/resonance"
)

// KeyMaterial derives signing keys from the root key ring.
type KeyMaterial interface {
	IsKnownProvider(provider string) bool
	Version() string
	Derive(provider string, salt []byte) (*keysService.DerivedKey, error)
	Candidates(provider, version string, salt []byte, now time.Time, fn func(keysService.DerivedKey) bool) error
	RetiredEpochAt(issuedAt, now time.Time) (uint64, bool)
}

// Gate admits providers and counts their failures.
type Gate interface {
	Inspect(provider string, metadata map[string]string) error
	Admit(provider string) (gate.Decision, error)
	RecordFailure(provider string) bool
}

// TTLPolicy computes token lifetimes from a resonance score.
type TTLPolicy interface {
	ComputeTTL(score int, environment string) (resonance.Decision, error)
}

// AuditRecorder receives forge events.
type AuditRecorder interface {
	Record(event auditDomain.Event)
}

// TokenForgeUseCase mints, validates and renews provider tokens.
type TokenForgeUseCase interface {
	// Mint admits the provider and returns a signed envelope.
	Mint(ctx context.Context, input *forgeDomain.MintInput) (*forgeDomain.MintOutput, error)
	// Validate checks an envelope. It never returns an error; rejections carry a reason.
	Validate(ctx context.Context, envelope forgeDomain.Envelope) forgeDomain.ValidationResult
	// Renew mints a replacement for a valid envelope inside the last tenth of its lifetime.
	Renew(ctx context.Context, input *forgeDomain.RenewInput) (*forgeDomain.MintOutput, error)
}
