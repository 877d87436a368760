package usecase

import (
	"context"
	"errors"
	"time"

	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
	"github.com/allisson/dominion/internal/gate"
	"github.com/allisson/dominion/internal/metrics"
)

// tokenForgeUseCaseWithMetrics decorates TokenForgeUseCase with metrics instrumentation.
type tokenForgeUseCaseWithMetrics struct {
	next    TokenForgeUseCase
	metrics metrics.BusinessMetrics
}

// NewTokenForgeUseCaseWithMetrics wraps a TokenForgeUseCase with metrics recording.
func NewTokenForgeUseCaseWithMetrics(useCase TokenForgeUseCase, m metrics.BusinessMetrics) TokenForgeUseCase {
	return &tokenForgeUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Mint records metrics for token minting.
func (t *tokenForgeUseCaseWithMetrics) Mint(
	ctx context.Context,
	input *forgeDomain.MintInput,
) (*forgeDomain.MintOutput, error) {
	start := time.Now()
	output, err := t.next.Mint(ctx, input)

	status := issueStatus(err)
	t.metrics.RecordOperation(ctx, "forge", "token_mint", status)
	t.metrics.RecordDuration(ctx, "forge", "token_mint", time.Since(start), status)
	if err == nil {
		t.metrics.RecordTokenIssued(ctx, output.Payload.Provider, output.Category, output.Payload.TTL())
	}

	return output, err
}

// Validate records metrics for token validation. Rejections are labelled with their reason.
func (t *tokenForgeUseCaseWithMetrics) Validate(
	ctx context.Context,
	envelope forgeDomain.Envelope,
) forgeDomain.ValidationResult {
	start := time.Now()
	result := t.next.Validate(ctx, envelope)

	status := "valid"
	if !result.Valid {
		status = string(result.Reason)
	}

	t.metrics.RecordOperation(ctx, "forge", "token_validate", status)
	t.metrics.RecordDuration(ctx, "forge", "token_validate", time.Since(start), status)

	return result
}

// Renew records metrics for token renewal.
func (t *tokenForgeUseCaseWithMetrics) Renew(
	ctx context.Context,
	input *forgeDomain.RenewInput,
) (*forgeDomain.MintOutput, error) {
	start := time.Now()
	output, err := t.next.Renew(ctx, input)

	status := issueStatus(err)
	t.metrics.RecordOperation(ctx, "forge", "token_renew", status)
	t.metrics.RecordDuration(ctx, "forge", "token_renew", time.Since(start), status)
	if err == nil {
		t.metrics.RecordTokenIssued(ctx, output.Payload.Provider, output.Category, output.Payload.TTL())
	}

	return output, err
}

// issueStatus labels gate refusals apart from other failures.
func issueStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gate.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, gate.ErrBehaviorAnomaly):
		return "anomaly"
	default:
		return "error"
	}
}
