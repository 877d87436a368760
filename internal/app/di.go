// Package app provides the dependency injection container assembling the token authority.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jonboulle/clockwork"

	auditRepository "github.com/allisson/dominion/internal/audit/repository"
	auditService "github.com/allisson/dominion/internal/audit/service"
	"github.com/allisson/dominion/internal/config"
	"github.com/allisson/dominion/internal/database"
	forgeUseCase "github.com/allisson/dominion/internal/forge/usecase"
	"github.com/allisson/dominion/internal/gate"
	"github.com/allisson/dominion/internal/http"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	keysService "github.com/allisson/dominion/internal/keys/service"
	keysUseCase "github.com/allisson/dominion/internal/keys/usecase"
	"github.com/allisson/dominion/internal/metrics"
	operatorService "github.com/allisson/dominion/internal/operator/service"
	"github.com/allisson/dominion/internal/resonance"
	rotationUseCase "github.com/allisson/dominion/internal/rotation/usecase"
)

// Container holds all application dependencies. Components are created on first access.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	clock           clockwork.Clock
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Keys
	kmsService       keysService.KMSService
	kmsKeeper        keysDomain.KMSKeeper
	providerRegistry *keysDomain.ProviderRegistry
	keyMaterial      *keysService.KeyMaterial
	rootKeyRepo      keysUseCase.RootKeyRepository
	rootKeyUseCase   keysUseCase.RootKeyUseCase

	// Audit
	auditSink       auditService.Sink
	auditFallback   *auditRepository.FileSink
	auditDispatcher *auditService.Dispatcher
	auditLedger     *auditService.Ledger
	auditEventRepo  AuditEventRepository

	// Forge
	gate              *gate.Gate
	resonanceSource   resonance.Source
	tokenForgeUseCase forgeUseCase.TokenForgeUseCase
	rotationManager   rotationUseCase.RotationManager
	operatorTokens    operatorService.TokenService

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// closers release resources owned by lazily created components, in creation order.
	closers []func() error

	mu                    sync.Mutex
	loggerInit            sync.Once
	clockInit             sync.Once
	dbInit                sync.Once
	txManagerInit         sync.Once
	metricsProviderInit   sync.Once
	businessMetricsInit   sync.Once
	kmsServiceInit        sync.Once
	kmsKeeperInit         sync.Once
	providerRegistryInit  sync.Once
	keyMaterialInit       sync.Once
	rootKeyRepoInit       sync.Once
	rootKeyUseCaseInit    sync.Once
	auditSinkInit         sync.Once
	auditFallbackInit     sync.Once
	auditDispatcherInit   sync.Once
	auditLedgerInit       sync.Once
	auditEventRepoInit    sync.Once
	gateInit              sync.Once
	resonanceSourceInit   sync.Once
	tokenForgeUseCaseInit sync.Once
	rotationManagerInit   sync.Once
	operatorTokensInit    sync.Once
	httpServerInit        sync.Once
	metricsServerInit     sync.Once
	initErrors            map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the JSON logger configured from LOG_LEVEL.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// Clock returns the wall clock shared by every time-dependent component.
func (c *Container) Clock() clockwork.Clock {
	c.clockInit.Do(func() {
		if c.clock == nil {
			c.clock = clockwork.NewRealClock()
		}
	})
	return c.clock
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		var err error
		c.db, err = c.initDB()
		c.storeErr("db", err)
	})
	return c.db, c.loadErr("db")
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeErr("txManager", fmt.Errorf("failed to get database for tx manager: %w", err))
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	return c.txManager, c.loadErr("txManager")
}

// MetricsProvider returns the Prometheus-backed meter provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.storeErr("metricsProvider", fmt.Errorf("failed to create metrics provider: %w", err))
			return
		}
		c.metricsProvider = provider
	})
	return c.metricsProvider, c.loadErr("metricsProvider")
}

// BusinessMetrics returns the operation metrics recorder, a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.storeErr("businessMetrics", err)
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.storeErr("businessMetrics", fmt.Errorf("failed to create business metrics: %w", err))
			return
		}
		c.businessMetrics = bm
	})
	return c.businessMetrics, c.loadErr("businessMetrics")
}

// Shutdown releases every initialized resource. Servers are stopped by their owners.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			shutdownErrors = append(shutdownErrors, err)
		}
	}
	c.closers = nil

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

func (c *Container) onShutdown(name string, closeFn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, func() error {
		if err := closeFn(); err != nil {
			return fmt.Errorf("%s close: %w", name, err)
		}
		return nil
	})
}

func (c *Container) storeErr(name string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErrors[name] = err
}

func (c *Container) loadErr(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler).With(slog.String("service", "dominion"))
}

func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
