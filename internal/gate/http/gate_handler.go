// Package http provides the operator handler that clears a provider's anomaly state.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	"github.com/allisson/dominion/internal/httputil"
	customValidation "github.com/allisson/dominion/internal/validation"
)

// Resetter clears gate state for a provider.
type Resetter interface {
	Reset(provider string)
	IsAnomalous(provider string) bool
}

// ResetResponse reports the provider state after a reset.
type ResetResponse struct {
	Provider  string `json:"provider"`
	Anomalous bool   `json:"anomalous"`
}

// GateHandler handles operator requests against the zero-trust gate.
type GateHandler struct {
	gate   Resetter
	logger *slog.Logger
}

// NewGateHandler creates a new gate handler.
func NewGateHandler(gate Resetter, logger *slog.Logger) *GateHandler {
	return &GateHandler{gate: gate, logger: logger}
}

// ResetHandler clears the anomaly state and failure log of a provider.
// POST /v1/gate/:provider/reset - Operator only. Returns 200 OK.
func (h *GateHandler) ResetHandler(c *gin.Context) {
	provider := c.Param("provider")
	if err := validation.Validate(provider, validation.Required, customValidation.ProviderName); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	h.gate.Reset(provider)

	c.JSON(http.StatusOK, ResetResponse{
		Provider:  provider,
		Anomalous: h.gate.IsAnomalous(provider),
	})
}
