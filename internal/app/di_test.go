package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/dominion/internal/config"
	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

func memoryConfig() *config.Config {
	return &config.Config{
		LogLevel:                 "error",
		ServerHost:               "localhost",
		ServerPort:               8080,
		KeyStore:                 KeyStoreMemory,
		AuditSink:                AuditSinkLog,
		AuditCapacity:            100,
		AuditQueueSize:           10,
		AuditRetryBackoff:        time.Second,
		AuditMaxRetries:          2,
		Providers:                []string{"render", "github"},
		Environment:              "production",
		BaseTTL:                  time.Hour,
		GateRateLimit:            60,
		GateRateWindow:           time.Minute,
		GateFailureLimit:         10,
		GateFailureWindow:        time.Hour,
		GateCoolDown:             time.Hour,
		RotationOverlap:          24 * time.Hour,
		RotationMaxKeyAge:        30 * 24 * time.Hour,
		RotationAnomalyThreshold: 10,
		RotationCheckInterval:    time.Hour,
		ResonanceDefaultScore:    85,
	}
}

func TestNewContainer(t *testing.T) {
	cfg := memoryConfig()
	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Same(t, cfg, container.Config())
}

func TestContainerLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "invalid"} {
		t.Run(level, func(t *testing.T) {
			container := NewContainer(&config.Config{LogLevel: level})

			logger := container.Logger()
			require.NotNil(t, logger)
			assert.Same(t, logger, container.Logger())
		})
	}
}

func TestContainerClock(t *testing.T) {
	container := NewContainer(memoryConfig())
	assert.Same(t, container.Clock(), container.Clock())
}

func TestContainerDBInvalidDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.DBDriver = "invalid_driver"
	container := NewContainer(cfg)

	db, err := container.DB()
	assert.Nil(t, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")

	// the error is cached
	_, err2 := container.DB()
	assert.Equal(t, err, err2)

	_, err = container.TxManager()
	assert.Error(t, err)
}

func TestContainerMetricsDisabled(t *testing.T) {
	container := NewContainer(memoryConfig())

	provider, err := container.MetricsProvider()
	require.NoError(t, err)
	assert.Nil(t, provider)

	bm, err := container.BusinessMetrics()
	require.NoError(t, err)
	assert.NotNil(t, bm)

	server, err := container.MetricsServer()
	require.NoError(t, err)
	assert.Nil(t, server)
}

func TestContainerMetricsEnabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.MetricsEnabled = true
	cfg.MetricsNamespace = "dominion_test"
	cfg.MetricsPort = 9090
	container := NewContainer(cfg)

	provider, err := container.MetricsProvider()
	require.NoError(t, err)
	require.NotNil(t, provider)

	server, err := container.MetricsServer()
	require.NoError(t, err)
	assert.NotNil(t, server)

	require.NoError(t, container.Shutdown(context.Background()))
}

func TestContainerProviderRegistry(t *testing.T) {
	t.Run("valid allow-list", func(t *testing.T) {
		container := NewContainer(memoryConfig())

		registry, err := container.ProviderRegistry()
		require.NoError(t, err)
		assert.True(t, registry.Current().Contains("render"))
	})

	t.Run("empty allow-list", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Providers = nil
		container := NewContainer(cfg)

		_, err := container.ProviderRegistry()
		assert.ErrorIs(t, err, keysDomain.ErrEmptyProviderSet)

		_, err = container.KeyMaterial()
		assert.ErrorIs(t, err, keysDomain.ErrEmptyProviderSet)
	})
}

func TestContainerRootKeyRepository(t *testing.T) {
	tests := []struct {
		name     string
		keyStore string
		dbDriver string
		errMsg   string
	}{
		{name: "memory", keyStore: KeyStoreMemory},
		{name: "default to memory", keyStore: ""},
		{name: "unsupported", keyStore: "redis", errMsg: "unsupported key store: redis"},
		{name: "driver mismatch", keyStore: KeyStoreMySQL, dbDriver: "postgres", errMsg: "does not match database driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			cfg.KeyStore = tt.keyStore
			cfg.DBDriver = tt.dbDriver
			container := NewContainer(cfg)

			repo, err := container.RootKeyRepository()
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, repo)
		})
	}
}

func TestContainerRootKeyUseCaseRequiresKMSForPersistentStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.KeyStore = KeyStorePostgres
	cfg.DBDriver = "postgres"
	container := NewContainer(cfg)

	_, err := container.RootKeyUseCase(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, keysDomain.ErrInvalidRootKey)
}

func TestContainerAuditSink(t *testing.T) {
	t.Run("log sink has no fallback", func(t *testing.T) {
		container := NewContainer(memoryConfig())

		sink, err := container.AuditSink()
		require.NoError(t, err)
		assert.NotNil(t, sink)

		fallback, err := container.AuditFallback()
		require.NoError(t, err)
		assert.Nil(t, fallback)
	})

	t.Run("file sink", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.AuditSink = AuditSinkFile
		cfg.AuditFilePath = t.TempDir() + "/audit.log"
		cfg.AuditFileRotationTime = time.Hour
		cfg.AuditFileMaxAge = 24 * time.Hour
		container := NewContainer(cfg)

		sink, err := container.AuditSink()
		require.NoError(t, err)
		assert.NotNil(t, sink)
		require.NoError(t, container.Shutdown(context.Background()))
	})

	t.Run("kafka sink requires brokers", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.AuditSink = AuditSinkKafka
		container := NewContainer(cfg)

		_, err := container.AuditSink()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AUDIT_KAFKA_BROKERS")
	})

	t.Run("unsupported sink", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.AuditSink = "syslog"
		container := NewContainer(cfg)

		_, err := container.AuditSink()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported audit sink: syslog")

		_, err = container.AuditLedger()
		assert.Error(t, err)
	})
}

func TestContainerResonanceSource(t *testing.T) {
	t.Run("static default", func(t *testing.T) {
		container := NewContainer(memoryConfig())

		source, err := container.ResonanceSource()
		require.NoError(t, err)
		score, err := source.Score(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 85, score)
	})

	t.Run("out of range default", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.ResonanceDefaultScore = 150
		container := NewContainer(cfg)

		_, err := container.ResonanceSource()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RESONANCE_DEFAULT_SCORE")
	})
}

func TestContainerMintAfterBootstrap(t *testing.T) {
	ctx := context.Background()
	container := NewContainer(memoryConfig())

	keys, err := container.RootKeyUseCase(ctx)
	require.NoError(t, err)
	require.NoError(t, keys.Bootstrap(ctx))

	forge, err := container.TokenForgeUseCase()
	require.NoError(t, err)

	out, err := forge.Mint(ctx, &forgeDomain.MintInput{Provider: "render", ResonanceScore: 95})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Epoch)

	result := forge.Validate(ctx, out.Envelope)
	assert.True(t, result.Valid)

	ledger, err := container.AuditLedger()
	require.NoError(t, err)
	assert.NotEmpty(t, ledger.Recent(0))

	require.NoError(t, container.Shutdown(ctx))
}

func TestContainerHTTPServer(t *testing.T) {
	ctx := context.Background()
	container := NewContainer(memoryConfig())

	server, err := container.HTTPServer(ctx)
	require.NoError(t, err)
	require.NotNil(t, server)

	server2, err := container.HTTPServer(ctx)
	require.NoError(t, err)
	assert.Same(t, server, server2)

	manager, err := container.RotationManager(ctx)
	require.NoError(t, err)
	assert.NotNil(t, manager)
}

func TestContainerUsesDatabase(t *testing.T) {
	tests := []struct {
		keyStore  string
		auditSink string
		expected  bool
	}{
		{keyStore: KeyStoreMemory, auditSink: AuditSinkLog, expected: false},
		{keyStore: KeyStoreMemory, auditSink: AuditSinkDatabase, expected: true},
		{keyStore: KeyStorePostgres, auditSink: AuditSinkFile, expected: true},
		{keyStore: KeyStoreMySQL, auditSink: AuditSinkKafka, expected: true},
	}

	for _, tt := range tests {
		cfg := memoryConfig()
		cfg.KeyStore = tt.keyStore
		cfg.AuditSink = tt.auditSink
		assert.Equal(t, tt.expected, NewContainer(cfg).usesDatabase(), "%s/%s", tt.keyStore, tt.auditSink)
	}
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t,
		[]time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second},
		retryBackoff(2*time.Second, 3),
	)
	assert.Empty(t, retryBackoff(0, 3))
	assert.Empty(t, retryBackoff(time.Second, 0))
}

func TestContainerShutdownWithoutInit(t *testing.T) {
	container := NewContainer(memoryConfig())
	assert.NoError(t, container.Shutdown(context.Background()))
}
