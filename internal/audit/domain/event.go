// Package domain defines the audit event model recorded for every token and key
// lifecycle decision.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the operation an event describes.
type EventType string

const (
	EventMint     EventType = "mint"
	EventValidate EventType = "validate"
	EventRenew    EventType = "renew"
	EventAdmit    EventType = "admit"
	EventGate     EventType = "gate"
	EventRotate   EventType = "rotate"
	EventPurge    EventType = "purge"
)

// Outcome is the result of the audited operation.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeRejected    Outcome = "rejected"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeAnomaly     Outcome = "anomaly"
	OutcomeAnomalyTrip Outcome = "anomaly_trip"
	OutcomeReset       Outcome = "reset"
)

// Event is an immutable audit record. Key material and envelopes never appear in it.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      EventType  `json:"event_type"`
	Outcome   Outcome    `json:"outcome"`
	Provider  string     `json:"provider"`
	TokenID   *uuid.UUID `json:"token_id,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"timestamp"`
}

// IsAnomalyTrip reports whether the event marks a gate entering the anomaly state.
func (e Event) IsAnomalyTrip() bool {
	return e.Type == EventGate && e.Outcome == OutcomeAnomalyTrip
}

// Key returns the "type/outcome" pair used to bucket events in reports.
func (e Event) Key() string {
	return string(e.Type) + "/" + string(e.Outcome)
}

// ComplianceSummary aggregates the ledger over a time window.
type ComplianceSummary struct {
	WindowStart      time.Time         `json:"window_start"`
	WindowEnd        time.Time         `json:"window_end"`
	TotalEvents      int               `json:"total_events"`
	ByType           map[EventType]int `json:"by_type"`
	ByOutcome        map[Outcome]int   `json:"by_outcome"`
	ByTypeAndOutcome map[string]int    `json:"by_type_and_outcome"`
	Providers        map[string]int    `json:"providers"`
	AnomalyTrips     int               `json:"anomaly_trips"`
	Evicted          uint64            `json:"evicted"`
}

// DispatchStats counts persistence outcomes of the audit dispatcher.
type DispatchStats struct {
	Persisted uint64 `json:"persisted"`
	Retried   uint64 `json:"retried"`
	Fallback  uint64 `json:"fallback"`
	Dropped   uint64 `json:"dropped"`
	QueueFull uint64 `json:"queue_full"`
}
