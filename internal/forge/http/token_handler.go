// Package http provides HTTP handlers for minting, validating and renewing tokens.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/dominion/internal/forge/http/dto"
	forgeUseCase "github.com/allisson/dominion/internal/forge/usecase"
	"github.com/allisson/dominion/internal/httputil"
	customValidation "github.com/allisson/dominion/internal/validation"
)

// TokenHandler handles HTTP requests for token operations.
type TokenHandler struct {
	forgeUseCase forgeUseCase.TokenForgeUseCase
	logger       *slog.Logger
}

// NewTokenHandler creates a new token handler with required dependencies.
func NewTokenHandler(forgeUseCase forgeUseCase.TokenForgeUseCase, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		forgeUseCase: forgeUseCase,
		logger:       logger,
	}
}

// MintHandler mints a token for a provider.
// POST /v1/tokens - Returns 201 Created with the envelope.
// Rate limited providers get 429 with Retry-After, locked providers 423.
func (h *TokenHandler) MintHandler(c *gin.Context) {
	var req dto.MintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, err := h.forgeUseCase.Mint(c.Request.Context(), req.ToDomain())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapMintOutputToResponse(output))
}

// ValidateHandler validates an envelope.
// POST /v1/tokens/validate - Always returns 200 with {valid, reason?, payload?} for a
// well-formed JSON body; encoding problems inside the envelope are reported as reasons.
func (h *TokenHandler) ValidateHandler(c *gin.Context) {
	var req dto.EnvelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	result := h.forgeUseCase.Validate(c.Request.Context(), req.ToDomain())
	c.JSON(http.StatusOK, dto.MapValidationResultToResponse(result))
}

// RenewHandler renews an envelope inside the last tenth of its lifetime.
// POST /v1/tokens/renew - Returns 201 Created with the new envelope, 409 when
// renewal is not due yet, 401 when the envelope is rejected.
func (h *TokenHandler) RenewHandler(c *gin.Context) {
	var req dto.RenewTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, err := h.forgeUseCase.Renew(c.Request.Context(), req.ToDomain())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapMintOutputToResponse(output))
}
