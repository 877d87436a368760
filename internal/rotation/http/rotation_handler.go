// Package http provides HTTP handlers for operator rotations and key status.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/dominion/internal/httputil"
	"github.com/allisson/dominion/internal/rotation/http/dto"
	rotationUseCase "github.com/allisson/dominion/internal/rotation/usecase"
	customValidation "github.com/allisson/dominion/internal/validation"
)

// RotationHandler handles HTTP requests for key rotation.
type RotationHandler struct {
	manager rotationUseCase.RotationManager
	logger  *slog.Logger
}

// NewRotationHandler creates a new rotation handler with required dependencies.
func NewRotationHandler(manager rotationUseCase.RotationManager, logger *slog.Logger) *RotationHandler {
	return &RotationHandler{
		manager: manager,
		logger:  logger,
	}
}

// RotateHandler starts a manual or incident rotation.
// POST /v1/rotations - Operator only. Returns 201 Created with the rotation result,
// 409 Conflict while another rotation or overlap window is open.
func (h *RotationHandler) RotateHandler(c *gin.Context) {
	var req dto.RotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.manager.Rotate(c.Request.Context(), req.ToDomain())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapResultToResponse(result))
}

// StatusHandler reports the key ring state.
// GET /v1/rotations/status - Operator only. Returns 200 OK.
func (h *RotationHandler) StatusHandler(c *gin.Context) {
	status, err := h.manager.Status(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}
