// Package usecase implements token minting, validation and renewal.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	apperrors "github.com/allisson/dominion/internal/errors"
	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
	forgeService "github.com/allisson/dominion/internal/forge/service"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	keysService "github.com/allisson/dominion/internal/keys/service"
	"github.com/allisson/dominion/internal/resonance"
)

// Mint stages reported in mint/failure audit events.
const (
	stageInspect  = "inspect"
	stageProvider = "provider"
	stageTTL      = "ttl"
	stageAdmit    = "admit"
	stageSalt     = "salt"
	stageDerive   = "derive"
	stageEncode   = "encode"
)

// Config holds forge settings.
type Config struct {
	// DefaultEnvironment applies when a request names no environment.
	DefaultEnvironment string
}

type tokenForgeUseCase struct {
	material KeyMaterial
	gate     Gate
	policy   TTLPolicy
	source   resonance.Source
	recorder AuditRecorder
	clock    clockwork.Clock
	cfg      Config
}

// NewTokenForgeUseCase creates the token forge.
func NewTokenForgeUseCase(
	material KeyMaterial,
	gate Gate,
	policy TTLPolicy,
	source resonance.Source,
	recorder AuditRecorder,
	clock clockwork.Clock,
	cfg Config,
) TokenForgeUseCase {
	return &tokenForgeUseCase{
		material: material,
		gate:     gate,
		policy:   policy,
		source:   source,
		recorder: recorder,
		clock:    clock,
		cfg:      cfg,
	}
}

// Mint runs the request through the gate, derives a per-token key from a fresh salt
// and signs the canonical payload.
func (u *tokenForgeUseCase) Mint(
	ctx context.Context,
	input *forgeDomain.MintInput,
) (*forgeDomain.MintOutput, error) {
	provider := input.Provider

	if err := u.gate.Inspect(provider, input.Metadata); err != nil {
		return nil, u.mintFailed(provider, stageInspect, err)
	}
	// unknown providers never reach Admit, so gate state only grows for allow-listed names
	if !u.material.IsKnownProvider(provider) {
		return nil, u.mintFailed(provider, stageProvider,
			fmt.Errorf("%w: %s", keysDomain.ErrUnknownProvider, provider))
	}

	environment := input.Environment
	if environment == "" {
		environment = u.cfg.DefaultEnvironment
	}
	decision, err := u.policy.ComputeTTL(input.ResonanceScore, environment)
	if err != nil {
		return nil, u.mintFailed(provider, stageTTL, err)
	}

	if _, err := u.gate.Admit(provider); err != nil {
		return nil, u.mintFailed(provider, stageAdmit, err)
	}

	salt, err := forgeService.NewSalt()
	if err != nil {
		return nil, u.mintFailed(provider, stageSalt, err)
	}
	derived, err := u.material.Derive(provider, salt)
	if err != nil {
		return nil, u.mintFailed(provider, stageDerive, err)
	}
	defer keysDomain.Zero(derived.Key)

	issuedAt := u.clock.Now().UTC().Truncate(time.Second)
	payload := forgeDomain.Payload{
		TokenID:    uuid.Must(uuid.NewV7()),
		Provider:   provider,
		Version:    u.material.Version(),
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(decision.TTL),
		TTLSeconds: int64(decision.TTL / time.Second),
		Metadata:   copyMetadata(input.Metadata),
	}
	raw, err := forgeService.EncodePayload(&payload)
	if err != nil {
		return nil, u.mintFailed(provider, stageEncode, err)
	}
	envelope := forgeService.Seal(raw, forgeService.Sign(derived.Key, raw), salt)

	u.record(auditDomain.EventMint, auditDomain.OutcomeSuccess, provider, &payload.TokenID,
		fmt.Sprintf("epoch=%d category=%s ttl=%ds", derived.Epoch, decision.Category, payload.TTLSeconds))

	return &forgeDomain.MintOutput{
		Envelope: envelope,
		Payload:  payload,
		Category: string(decision.Category),
		Epoch:    derived.Epoch,
	}, nil
}

// Validate decodes the envelope and checks it against the current key, then the
// deprecated one. The provider named in the payload is only trusted once the signature
// matches. Every rejection is audited and, when it can be tied to an allow-listed
// provider, counted as a failure at the gate.
func (u *tokenForgeUseCase) Validate(
	ctx context.Context,
	envelope forgeDomain.Envelope,
) forgeDomain.ValidationResult {
	opened, err := forgeService.Open(envelope)
	if err != nil {
		provider := forgeService.RecoverProvider(envelope.Token)
		u.record(auditDomain.EventValidate, auditDomain.OutcomeRejected, provider, nil,
			fmt.Sprintf("reason=%s: %s", forgeDomain.ReasonBadSignature, err))
		u.countFailure(provider)
		return forgeDomain.Rejected(forgeDomain.ReasonBadSignature, nil)
	}
	payload := &opened.Payload

	now := u.clock.Now()
	var (
		matched bool
		epoch   uint64
	)
	err = u.material.Candidates(payload.Provider, payload.Version, opened.Salt, now,
		func(key keysService.DerivedKey) bool {
			if forgeService.Verify(key.Key, opened.Raw, opened.Signature) {
				matched, epoch = true, key.Epoch
			}
			return matched
		},
	)
	if err != nil || !matched {
		if _, retired := u.material.RetiredEpochAt(payload.IssuedAt, now); retired && err == nil {
			return u.reject(payload, forgeDomain.ReasonUnknownKeyEpoch)
		}
		return u.reject(payload, forgeDomain.ReasonBadSignature)
	}

	if !u.material.IsKnownProvider(payload.Provider) {
		return u.reject(payload, forgeDomain.ReasonUnknownProvider)
	}
	if payload.IsExpired(now) {
		return u.reject(payload, forgeDomain.ReasonExpired)
	}

	u.record(auditDomain.EventValidate, auditDomain.OutcomeSuccess, payload.Provider, &payload.TokenID,
		fmt.Sprintf("epoch=%d", epoch))
	return forgeDomain.ValidationResult{Valid: true, Payload: payload, Epoch: epoch}
}

// Renew mints a replacement with the same provider and metadata once the envelope is
// inside the last tenth of its lifetime. The presented envelope stays valid until it
// expires.
func (u *tokenForgeUseCase) Renew(
	ctx context.Context,
	input *forgeDomain.RenewInput,
) (*forgeDomain.MintOutput, error) {
	result := u.Validate(ctx, input.Envelope)
	if !result.Valid {
		return nil, &forgeDomain.RejectionError{Reason: result.Reason}
	}
	previous := result.Payload

	renewableAt := previous.RenewableAt()
	if u.clock.Now().Before(renewableAt) {
		u.record(auditDomain.EventRenew, auditDomain.OutcomeRejected, previous.Provider, &previous.TokenID,
			"renewable_at="+renewableAt.Format(time.RFC3339))
		return nil, fmt.Errorf("%w: renewable at %s", forgeDomain.ErrRenewalNotDue, renewableAt.Format(time.RFC3339))
	}

	var score int
	if input.ResonanceScore != nil {
		score = *input.ResonanceScore
	} else {
		var err error
		score, err = u.source.Score(ctx)
		if err != nil {
			u.record(auditDomain.EventRenew, auditDomain.OutcomeFailure, previous.Provider, &previous.TokenID,
				"stage=score: "+err.Error())
			return nil, fmt.Errorf("failed to read resonance score: %w", err)
		}
	}

	output, err := u.Mint(ctx, &forgeDomain.MintInput{
		Provider:       previous.Provider,
		ResonanceScore: score,
		Environment:    input.Environment,
		Metadata:       previous.Metadata,
	})
	if err != nil {
		u.record(auditDomain.EventRenew, auditDomain.OutcomeFailure, previous.Provider, &previous.TokenID,
			"stage=mint")
		return nil, err
	}

	u.record(auditDomain.EventRenew, auditDomain.OutcomeSuccess, previous.Provider, &output.Payload.TokenID,
		"previous_token_id="+previous.TokenID.String())
	return output, nil
}

func (u *tokenForgeUseCase) mintFailed(provider, stage string, err error) error {
	u.record(auditDomain.EventMint, auditDomain.OutcomeFailure, provider, nil,
		fmt.Sprintf("stage=%s kind=%s: %s", stage, apperrors.Kind(err), err))
	return err
}

func (u *tokenForgeUseCase) reject(
	payload *forgeDomain.Payload,
	reason forgeDomain.Reason,
) forgeDomain.ValidationResult {
	u.record(auditDomain.EventValidate, auditDomain.OutcomeRejected, payload.Provider, &payload.TokenID,
		"reason="+string(reason))
	if reason != forgeDomain.ReasonUnknownProvider {
		u.countFailure(payload.Provider)
	}
	return forgeDomain.Rejected(reason, payload)
}

// countFailure feeds the anomaly window. Names outside the allow-list are ignored so
// forged envelopes cannot grow gate state.
func (u *tokenForgeUseCase) countFailure(provider string) {
	if provider != "" && u.material.IsKnownProvider(provider) {
		u.gate.RecordFailure(provider)
	}
}

func (u *tokenForgeUseCase) record(
	eventType auditDomain.EventType,
	outcome auditDomain.Outcome,
	provider string,
	tokenID *uuid.UUID,
	detail string,
) {
	if u.recorder == nil {
		return
	}
	u.recorder.Record(auditDomain.Event{
		Type:     eventType,
		Outcome:  outcome,
		Provider: provider,
		TokenID:  tokenID,
		Detail:   detail,
	})
}

func copyMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
