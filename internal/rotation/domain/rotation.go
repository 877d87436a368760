// Package domain defines rotation triggers, results and the sovereign key status.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/dominion/internal/errors"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

// Trigger names what started a rotation.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerIncident  Trigger = "incident"
)

// ErrInvalidTrigger indicates an unknown rotation trigger.
var ErrInvalidTrigger = errors.Wrap(errors.ErrInvalidInput, "invalid rotation trigger")

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerScheduled, TriggerManual, TriggerIncident:
		return true
	}
	return false
}

// RotateInput contains the parameters of a rotation request.
type RotateInput struct {
	Trigger Trigger
	Reason  string
}

// Result describes a completed rotation.
type Result struct {
	RotationID       uuid.UUID `json:"rotation_id"`
	Trigger          Trigger   `json:"trigger"`
	PreviousKeyEpoch uint64    `json:"previous_key_epoch"`
	NewKeyEpoch      uint64    `json:"new_key_epoch"`
	NewFingerprint   string    `json:"new_fingerprint"`
	RotatedAt        time.Time `json:"rotated_at"`
	OverlapEndsAt    time.Time `json:"overlap_ends_at"`
}

// Status is the ring status enriched with the key age and the scheduler's view.
type Status struct {
	keysDomain.Status
	KeyAge      time.Duration
	MaxKeyAge   time.Duration
	RotationDue bool
	InProgress  bool
}
