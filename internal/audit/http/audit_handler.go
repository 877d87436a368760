// Package http provides HTTP handlers for the audit ledger and compliance export.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	"github.com/allisson/dominion/internal/audit/http/dto"
	"github.com/allisson/dominion/internal/gate"
	"github.com/allisson/dominion/internal/httputil"
)

// MaxComplianceWindow bounds the window query parameter.
const MaxComplianceWindow = 30 * 24 * time.Hour

// Ledger is the read side of the audit ledger.
type Ledger interface {
	Recent(n int) []auditDomain.Event
	Report(window time.Duration) auditDomain.ComplianceSummary
}

// GateSnapshotter exports per-provider gate state.
type GateSnapshotter interface {
	Snapshot() []gate.ProviderSnapshot
}

// DispatchStatsProvider exposes audit persistence counters.
type DispatchStatsProvider interface {
	Stats() auditDomain.DispatchStats
}

// AuditHandler handles HTTP requests for audit events and compliance reports.
type AuditHandler struct {
	ledger     Ledger
	gate       GateSnapshotter
	dispatcher DispatchStatsProvider
	logger     *slog.Logger
}

// NewAuditHandler creates a new audit handler. dispatcher may be nil.
func NewAuditHandler(
	ledger Ledger,
	gate GateSnapshotter,
	dispatcher DispatchStatsProvider,
	logger *slog.Logger,
) *AuditHandler {
	return &AuditHandler{
		ledger:     ledger,
		gate:       gate,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ListHandler returns the audit events held in memory, newest first.
// GET /v1/audit-events?offset=0&limit=50&provider=render&event_type=mint - Returns 200 OK.
// provider and event_type are optional exact-match filters.
func (h *AuditHandler) ListHandler(c *gin.Context) {
	page, err := httputil.ParsePage(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	provider := c.Query("provider")
	eventType := auditDomain.EventType(c.Query("event_type"))

	events := h.ledger.Recent(0)
	if provider != "" || eventType != "" {
		filtered := make([]auditDomain.Event, 0, len(events))
		for _, event := range events {
			if provider != "" && event.Provider != provider {
				continue
			}
			if eventType != "" && event.Type != eventType {
				continue
			}
			filtered = append(filtered, event)
		}
		events = filtered
	}

	c.JSON(http.StatusOK, dto.MapEventsToListResponse(httputil.Apply(page, events)))
}

// ComplianceHandler summarizes the ledger over a window.
// GET /v1/compliance?window=24h - Returns 200 OK with counts per event type and
// outcome, anomaly trips, gate state and audit persistence counters.
func (h *AuditHandler) ComplianceHandler(c *gin.Context) {
	window, err := httputil.ParseWindow(c, "window", 24*time.Hour, MaxComplianceWindow)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	response := dto.ComplianceResponse{
		Window:  window.String(),
		Summary: h.ledger.Report(window),
		Gate:    h.gate.Snapshot(),
	}
	if h.dispatcher != nil {
		stats := h.dispatcher.Stats()
		response.Dispatch = &stats
	}

	c.JSON(http.StatusOK, response)
}
