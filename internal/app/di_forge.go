package app

import (
	"context"
	"fmt"

	forgeUseCase "github.com/allisson/dominion/internal/forge/usecase"
	"github.com/allisson/dominion/internal/gate"
	operatorService "github.com/allisson/dominion/internal/operator/service"
	"github.com/allisson/dominion/internal/resonance"
	rotationUseCase "github.com/allisson/dominion/internal/rotation/usecase"
)

// Gate returns the zero-trust gate.
func (c *Container) Gate() (*gate.Gate, error) {
	c.gateInit.Do(func() {
		ledger, err := c.AuditLedger()
		if err != nil {
			c.storeErr("gate", fmt.Errorf("failed to get audit ledger for gate: %w", err))
			return
		}
		c.gate = gate.New(gate.Config{
			RateLimit:     c.config.GateRateLimit,
			RateWindow:    c.config.GateRateWindow,
			FailureLimit:  c.config.GateFailureLimit,
			FailureWindow: c.config.GateFailureWindow,
			CoolDown:      c.config.GateCoolDown,
		}, c.Clock(), ledger, c.Logger())
	})
	return c.gate, c.loadErr("gate")
}

// ResonanceSource returns the health signal used when a renewal omits the score: the
// state file when configured, otherwise the static default score.
func (c *Container) ResonanceSource() (resonance.Source, error) {
	c.resonanceSourceInit.Do(func() {
		if _, err := resonance.Classify(c.config.ResonanceDefaultScore); err != nil {
			c.storeErr("resonanceSource", fmt.Errorf("invalid RESONANCE_DEFAULT_SCORE: %w", err))
			return
		}
		if c.config.ResonanceStateFile != "" {
			c.resonanceSource = &resonance.FileSource{
				Path:     c.config.ResonanceStateFile,
				Fallback: c.config.ResonanceDefaultScore,
			}
			return
		}
		c.resonanceSource = resonance.StaticSource(c.config.ResonanceDefaultScore)
	})
	return c.resonanceSource, c.loadErr("resonanceSource")
}

// TokenForgeUseCase returns the forge wrapped with business metrics.
func (c *Container) TokenForgeUseCase() (forgeUseCase.TokenForgeUseCase, error) {
	c.tokenForgeUseCaseInit.Do(func() {
		useCase, err := c.initTokenForgeUseCase()
		if err != nil {
			c.storeErr("tokenForgeUseCase", err)
			return
		}
		c.tokenForgeUseCase = useCase
	})
	return c.tokenForgeUseCase, c.loadErr("tokenForgeUseCase")
}

// RotationManager returns the rotation manager wrapped with business metrics.
func (c *Container) RotationManager(ctx context.Context) (rotationUseCase.RotationManager, error) {
	c.rotationManagerInit.Do(func() {
		manager, err := c.initRotationManager(ctx)
		if err != nil {
			c.storeErr("rotationManager", err)
			return
		}
		c.rotationManager = manager
	})
	return c.rotationManager, c.loadErr("rotationManager")
}

// OperatorTokenService returns the operator token hasher.
func (c *Container) OperatorTokenService() operatorService.TokenService {
	c.operatorTokensInit.Do(func() {
		c.operatorTokens = operatorService.NewTokenService()
	})
	return c.operatorTokens
}

func (c *Container) initTokenForgeUseCase() (forgeUseCase.TokenForgeUseCase, error) {
	material, err := c.KeyMaterial()
	if err != nil {
		return nil, err
	}
	g, err := c.Gate()
	if err != nil {
		return nil, err
	}
	source, err := c.ResonanceSource()
	if err != nil {
		return nil, err
	}
	ledger, err := c.AuditLedger()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	base := forgeUseCase.NewTokenForgeUseCase(
		material,
		g,
		resonance.NewPolicy(c.config.BaseTTL),
		source,
		ledger,
		c.Clock(),
		forgeUseCase.Config{DefaultEnvironment: c.config.Environment},
	)
	return forgeUseCase.NewTokenForgeUseCaseWithMetrics(base, businessMetrics), nil
}

func (c *Container) initRotationManager(ctx context.Context) (rotationUseCase.RotationManager, error) {
	keys, err := c.RootKeyUseCase(ctx)
	if err != nil {
		return nil, err
	}
	ledger, err := c.AuditLedger()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	base := rotationUseCase.NewRotationManager(keys, ledger, ledger, c.Clock(), c.Logger(), rotationUseCase.Config{
		MaxKeyAge:        c.config.RotationMaxKeyAge,
		AnomalyThreshold: c.config.RotationAnomalyThreshold,
		CheckInterval:    c.config.RotationCheckInterval,
	})
	return rotationUseCase.NewRotationManagerWithMetrics(base, businessMetrics), nil
}
