// Package dto provides data transfer objects for the audit endpoints.
package dto

import (
	"time"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	"github.com/allisson/dominion/internal/gate"
)

// AuditEventResponse represents an audit event in API responses.
type AuditEventResponse struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Outcome   string    `json:"outcome"`
	Provider  string    `json:"provider"`
	TokenID   *string   `json:"token_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MapEventToResponse converts a domain event to an API response.
func MapEventToResponse(event auditDomain.Event) AuditEventResponse {
	response := AuditEventResponse{
		ID:        event.ID.String(),
		EventType: string(event.Type),
		Outcome:   string(event.Outcome),
		Provider:  event.Provider,
		Detail:    event.Detail,
		Timestamp: event.CreatedAt,
	}
	if event.TokenID != nil {
		tokenID := event.TokenID.String()
		response.TokenID = &tokenID
	}
	return response
}

// ListAuditEventsResponse represents a page of audit events, newest first.
type ListAuditEventsResponse struct {
	Data []AuditEventResponse `json:"data"`
}

// MapEventsToListResponse converts domain events to a list API response.
func MapEventsToListResponse(events []auditDomain.Event) ListAuditEventsResponse {
	data := make([]AuditEventResponse, 0, len(events))
	for _, event := range events {
		data = append(data, MapEventToResponse(event))
	}
	return ListAuditEventsResponse{Data: data}
}

// ComplianceResponse is the compliance export: ledger summary, gate state and audit
// persistence counters.
type ComplianceResponse struct {
	Window   string                        `json:"window"`
	Summary  auditDomain.ComplianceSummary `json:"summary"`
	Gate     []gate.ProviderSnapshot       `json:"gate"`
	Dispatch *auditDomain.DispatchStats    `json:"dispatch,omitempty"`
}
