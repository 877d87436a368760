// Package http provides the operator handler that swaps the provider allow-list.
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	"github.com/allisson/dominion/internal/httputil"
	customValidation "github.com/allisson/dominion/internal/validation"
)

// ProviderLoader reads the configured allow-list, used when a reload names no providers.
type ProviderLoader func() ([]string, error)

// ReloadProvidersRequest optionally carries the new allow-list.
type ReloadProvidersRequest struct {
	Providers []string `json:"providers"`
}

// Validate checks every provider name.
func (r *ReloadProvidersRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Providers,
			validation.Each(validation.Required, customValidation.ProviderName),
		),
	)
}

// ProvidersResponse lists the active allow-list.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// ProviderHandler handles operator requests on the provider allow-list.
type ProviderHandler struct {
	registry *keysDomain.ProviderRegistry
	loader   ProviderLoader
	logger   *slog.Logger
}

// NewProviderHandler creates a new provider handler. loader may be nil, in which case
// reloads must name the providers.
func NewProviderHandler(registry *keysDomain.ProviderRegistry, loader ProviderLoader, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{registry: registry, loader: loader, logger: logger}
}

// ReloadHandler atomically replaces the allow-list, from the body or from configuration.
// POST /v1/providers/reload - Operator only. Returns 200 OK with the active list.
func (h *ProviderHandler) ReloadHandler(c *gin.Context) {
	var req ReloadProvidersRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	names := req.Providers
	if len(names) == 0 {
		if h.loader == nil {
			httputil.HandleValidationErrorGin(c, keysDomain.ErrEmptyProviderSet, h.logger)
			return
		}
		loaded, err := h.loader()
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		names = loaded
	}

	set, err := h.registry.Reload(names)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	h.logger.Info("provider allow-list reloaded", slog.Any("providers", set.Names()))

	c.JSON(http.StatusOK, ProvidersResponse{Providers: set.Names()})
}
