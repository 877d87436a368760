// Package http assembles the gin router serving the token authority API.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditHTTP "github.com/allisson/dominion/internal/audit/http"
	forgeHTTP "github.com/allisson/dominion/internal/forge/http"
	gateHTTP "github.com/allisson/dominion/internal/gate/http"
	keysHTTP "github.com/allisson/dominion/internal/keys/http"
	"github.com/allisson/dominion/internal/metrics"
	operatorHTTP "github.com/allisson/dominion/internal/operator/http"
	rotationHTTP "github.com/allisson/dominion/internal/rotation/http"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig carries the router settings taken from configuration.
type RouterConfig struct {
	GinMode string

	CORSEnabled      bool
	CORSAllowOrigins string

	RateLimitTokenEnabled        bool
	RateLimitTokenRequestsPerSec float64
	RateLimitTokenBurst          int

	OperatorTokenHash string

	// MetricsProvider enables the HTTP metrics middleware when not nil.
	MetricsProvider  *metrics.Provider
	MetricsNamespace string
}

// Handlers groups the route handlers registered by SetupRouter.
type Handlers struct {
	Token            *forgeHTTP.TokenHandler
	Audit            *auditHTTP.AuditHandler
	Rotation         *rotationHTTP.RotationHandler
	Gate             *gateHTTP.GateHandler
	Provider         *keysHTTP.ProviderHandler
	OperatorVerifier operatorHTTP.TokenVerifier
}

// Server is the public API server.
type Server struct {
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
	checks []ReadinessCheck
}

// NewServer creates a server bound to host:port. checks run on every /ready request.
func NewServer(host string, port int, logger *slog.Logger, checks ...ReadinessCheck) *Server {
	return &Server{
		logger: logger,
		checks: checks,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers every route. ctx bounds background work owned by middleware.
func (s *Server) SetupRouter(ctx context.Context, cfg RouterConfig, h Handlers) {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if cfg.MetricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MetricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	tokens := v1.Group("/tokens")
	if cfg.RateLimitTokenEnabled {
		tokens.Use(forgeHTTP.IPRateLimitMiddleware(
			ctx,
			cfg.RateLimitTokenRequestsPerSec,
			cfg.RateLimitTokenBurst,
			s.logger,
		))
	}
	tokens.POST("", h.Token.MintHandler)
	tokens.POST("/validate", h.Token.ValidateHandler)
	tokens.POST("/renew", h.Token.RenewHandler)

	operator := v1.Group("")
	operator.Use(operatorHTTP.OperatorAuthMiddleware(h.OperatorVerifier, cfg.OperatorTokenHash, s.logger))
	{
		operator.POST("/rotations", h.Rotation.RotateHandler)
		operator.GET("/rotations/status", h.Rotation.StatusHandler)
		operator.GET("/compliance", h.Audit.ComplianceHandler)
		operator.GET("/audit-events", h.Audit.ListHandler)
		operator.POST("/gate/:provider/reset", h.Gate.ResetHandler)
		operator.POST("/providers/reload", h.Provider.ReloadHandler)
	}

	s.router = router
	s.server.Handler = router
}

// Handler returns the configured router, or nil before SetupRouter.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.server.Handler == nil {
		return fmt.Errorf("router not configured")
	}

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler runs every check and reports each component as "ok" or "error".
func (s *Server) readinessHandler(c *gin.Context) {
	components := make(map[string]string, len(s.checks))
	ready := true

	for _, check := range s.checks {
		if err := check.Check(c.Request.Context()); err != nil {
			s.logger.Warn("readiness check failed",
				slog.String("component", check.Name),
				slog.Any("error", err))
			components[check.Name] = "error"
			ready = false
			continue
		}
		components[check.Name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
