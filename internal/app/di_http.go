package app

import (
	"context"
	"fmt"

	auditHTTP "github.com/allisson/dominion/internal/audit/http"
	"github.com/allisson/dominion/internal/config"
	"github.com/allisson/dominion/internal/database"
	forgeHTTP "github.com/allisson/dominion/internal/forge/http"
	gateHTTP "github.com/allisson/dominion/internal/gate/http"
	"github.com/allisson/dominion/internal/http"
	keysHTTP "github.com/allisson/dominion/internal/keys/http"
	rotationHTTP "github.com/allisson/dominion/internal/rotation/http"
)

// HTTPServer returns the API server with every route registered. ctx bounds the
// background work of its middleware.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer(ctx)
		if err != nil {
			c.storeErr("httpServer", err)
			return
		}
		c.httpServer = server
	})
	return c.httpServer, c.loadErr("httpServer")
}

// MetricsServer returns the Prometheus server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.storeErr("metricsServer", err)
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	return c.metricsServer, c.loadErr("metricsServer")
}

func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	logger := c.Logger()

	forge, err := c.TokenForgeUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get token forge for http server: %w", err)
	}
	manager, err := c.RotationManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation manager for http server: %w", err)
	}
	ledger, err := c.AuditLedger()
	if err != nil {
		return nil, err
	}
	dispatcher, err := c.AuditDispatcher()
	if err != nil {
		return nil, err
	}
	g, err := c.Gate()
	if err != nil {
		return nil, err
	}
	registry, err := c.ProviderRegistry()
	if err != nil {
		return nil, err
	}
	material, err := c.KeyMaterial()
	if err != nil {
		return nil, err
	}
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}

	checks := []http.ReadinessCheck{{
		Name: "key_ring",
		Check: func(context.Context) error {
			_, err := material.Ring().Status()
			return err
		},
	}}
	if c.usesDatabase() {
		db, err := c.DB()
		if err != nil {
			return nil, err
		}
		checks = append(checks, http.ReadinessCheck{
			Name:  "database",
			Check: func(ctx context.Context) error { return database.Ping(ctx, db) },
		})
	}

	server := http.NewServer(c.config.ServerHost, c.config.ServerPort, logger, checks...)
	server.SetupRouter(ctx, http.RouterConfig{
		GinMode:                      c.config.GetGinMode(),
		CORSEnabled:                  c.config.CORSEnabled,
		CORSAllowOrigins:             c.config.CORSAllowOrigins,
		RateLimitTokenEnabled:        c.config.RateLimitTokenEnabled,
		RateLimitTokenRequestsPerSec: c.config.RateLimitTokenRequestsPerSec,
		RateLimitTokenBurst:          c.config.RateLimitTokenBurst,
		OperatorTokenHash:            c.config.OperatorTokenHash,
		MetricsProvider:              metricsProvider,
		MetricsNamespace:             c.config.MetricsNamespace,
	}, http.Handlers{
		Token:            forgeHTTP.NewTokenHandler(forge, logger),
		Audit:            auditHTTP.NewAuditHandler(ledger, g, dispatcher, logger),
		Rotation:         rotationHTTP.NewRotationHandler(manager, logger),
		Gate:             gateHTTP.NewGateHandler(g, logger),
		Provider:         keysHTTP.NewProviderHandler(registry, c.loadProviders, logger),
		OperatorVerifier: c.OperatorTokenService(),
	})
	return server, nil
}

func (c *Container) loadProviders() ([]string, error) {
	providers := config.LoadProviders()
	if len(providers) == 0 {
		return nil, fmt.Errorf("FORGE_PROVIDERS is empty")
	}
	return providers, nil
}

func (c *Container) usesDatabase() bool {
	return c.config.KeyStore == KeyStorePostgres ||
		c.config.KeyStore == KeyStoreMySQL ||
		c.config.AuditSink == AuditSinkDatabase
}
