// Package integration runs the token authority end to end against PostgreSQL and
// MySQL: persisted root keys wrapped by a local KMS key, database audit sink, and
// the full HTTP router.
package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/dominion/internal/app"
	"github.com/allisson/dominion/internal/config"
	operatorService "github.com/allisson/dominion/internal/operator/service"
	"github.com/allisson/dominion/internal/testutil"
)

const operatorToken = "integration-operator-token"

// instance is one running authority process sharing the test database.
type instance struct {
	container *app.Container
	server    *httptest.Server
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func (i *instance) stop(t *testing.T) {
	t.Helper()
	i.server.Close()
	i.cancel()
	i.wg.Wait()
	require.NoError(t, i.container.Shutdown(context.Background()))
}

func (i *instance) do(t *testing.T, method, path string, body any, operator bool) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, i.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if operator {
		req.Header.Set("Authorization", "Bearer "+operatorToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // localhost test server
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func newConfig(t *testing.T, driver, dsn string) *config.Config {
	t.Helper()

	kmsKey := make([]byte, 32)
	_, err := rand.Read(kmsKey)
	require.NoError(t, err)

	hash, err := operatorService.NewTokenService().Hash(operatorToken)
	require.NoError(t, err)

	return &config.Config{
		ServerHost:               "localhost",
		ServerPort:               0,
		DBDriver:                 driver,
		DBConnectionString:       dsn,
		DBMaxOpenConnections:     5,
		DBMaxIdleConnections:     2,
		DBConnMaxLifetime:        time.Minute,
		LogLevel:                 "error",
		KMSKeyURI:                "base64key://" + base64.URLEncoding.EncodeToString(kmsKey),
		KeyStore:                 driver,
		Providers:                []string{"render", "github", "local"},
		Environment:              "staging",
		BaseTTL:                  time.Hour,
		GateRateLimit:            60,
		GateRateWindow:           time.Minute,
		GateFailureLimit:         10,
		GateFailureWindow:        time.Hour,
		GateCoolDown:             time.Hour,
		AuditCapacity:            1000,
		AuditSink:                app.AuditSinkDatabase,
		AuditQueueSize:           100,
		AuditRetryBackoff:        10 * time.Millisecond,
		AuditMaxRetries:          1,
		AuditFallbackPath:        t.TempDir() + "/audit-fallback.log",
		RotationOverlap:          24 * time.Hour,
		RotationMaxKeyAge:        30 * 24 * time.Hour,
		RotationAnomalyThreshold: 10,
		RotationCheckInterval:    time.Hour,
		OperatorTokenHash:        hash,
		ResonanceDefaultScore:    75,
	}
}

func start(t *testing.T, cfg *config.Config) *instance {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	container := app.NewContainer(cfg)

	keys, err := container.RootKeyUseCase(ctx)
	require.NoError(t, err)
	require.NoError(t, keys.Bootstrap(ctx))

	server, err := container.HTTPServer(ctx)
	require.NoError(t, err)
	dispatcher, err := container.AuditDispatcher()
	require.NoError(t, err)

	inst := &instance{
		container: container,
		server:    httptest.NewServer(server.Handler()),
		cancel:    cancel,
	}
	inst.wg.Add(1)
	go func() {
		defer inst.wg.Done()
		_ = dispatcher.Start(ctx)
	}()
	return inst
}

func envelopeOf(minted map[string]any) map[string]any {
	return map[string]any{
		"token":          minted["token"],
		"signature":      minted["signature"],
		"nonce":          minted["nonce"],
		"algorithm":      minted["algorithm"],
		"key_derivation": minted["key_derivation"],
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
	return count
}

func runLifecycle(t *testing.T, db *sql.DB, cfg *config.Config) {
	first := start(t, cfg)

	status, minted := first.do(t, http.MethodPost, "/v1/tokens", map[string]any{
		"provider":        "render",
		"resonance_score": 95,
		"metadata":        map[string]string{"deployment": "web"},
	}, false)
	require.Equal(t, http.StatusCreated, status, minted)
	assert.Equal(t, "optimal", minted["risk_category"])
	envelope := envelopeOf(minted)

	status, body := first.do(t, http.MethodPost, "/v1/tokens/validate", envelope, false)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, body = first.do(t, http.MethodPost, "/v1/tokens", map[string]any{
		"provider":        "heroku",
		"resonance_score": 95,
	}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, status, body)

	status, body = first.do(t, http.MethodPost, "/v1/rotations",
		map[string]any{"trigger": "manual", "reason": "integration"}, true)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(2), body["new_key_epoch"])

	first.stop(t)

	assert.Equal(t, 2, countRows(t, db, "root_keys"))
	assert.Positive(t, countRows(t, db, "audit_events"))

	// a restarted process restores both epochs from the store
	second := start(t, cfg)
	defer second.stop(t)

	status, body = second.do(t, http.MethodGet, "/v1/rotations/status", nil, true)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(2), body["current_epoch"])
	assert.Equal(t, float64(1), body["deprecated_epoch"])

	status, body = second.do(t, http.MethodPost, "/v1/tokens/validate", envelope, false)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"], body)

	repo, err := second.container.AuditEventRepository()
	require.NoError(t, err)
	count, err := repo.DeleteOlderThan(context.Background(), time.Now().Add(time.Hour), true)
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestIntegration_PostgreSQL(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	runLifecycle(t, db, newConfig(t, "postgres", testutil.GetPostgresTestDSN()))
}

func TestIntegration_MySQL(t *testing.T) {
	testutil.SkipIfNoMySQL(t)

	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)

	runLifecycle(t, db, newConfig(t, "mysql", testutil.GetMySQLTestDSN()))
}
