// Package http provides the bearer token middleware guarding operator routes.
package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/dominion/internal/errors"
	"github.com/allisson/dominion/internal/httputil"
)

// TokenVerifier checks a plain operator token against the configured hash.
type TokenVerifier interface {
	Verify(plainToken string, tokenHash string) bool
}

// OperatorAuthMiddleware requires "Authorization: Bearer <token>" matching tokenHash.
//
// An empty tokenHash disables every operator route: requests are rejected with 401
// rather than let through.
func OperatorAuthMiddleware(verifier TokenVerifier, tokenHash string, logger *slog.Logger) gin.HandlerFunc {
	if tokenHash == "" {
		logger.Warn("operator token hash not configured, operator routes are disabled")
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug("operator authentication failed: missing authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		const bearerPrefix = "bearer "
		if len(authHeader) < len(bearerPrefix) ||
			!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			logger.Debug("operator authentication failed: malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		plainToken := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if tokenHash == "" || !verifier.Verify(plainToken, tokenHash) {
			logger.Warn("operator authentication failed",
				slog.String("client_ip", c.ClientIP()),
				slog.String("path", c.FullPath()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
