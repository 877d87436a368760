// Package dto provides data transfer objects for the rotation endpoints.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	rotationDomain "github.com/allisson/dominion/internal/rotation/domain"
)

// RotateRequest contains the parameters of an operator rotation. Scheduled rotations
// are reserved for the scheduler.
type RotateRequest struct {
	Trigger string `json:"trigger"`
	Reason  string `json:"reason"`
}

// Validate checks if the rotate request is valid.
func (r *RotateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Trigger,
			validation.Required,
			validation.In(string(rotationDomain.TriggerManual), string(rotationDomain.TriggerIncident)),
		),
		validation.Field(&r.Reason, validation.Length(0, 255)),
	)
}

// ToDomain converts the request to a rotate input.
func (r *RotateRequest) ToDomain() *rotationDomain.RotateInput {
	return &rotationDomain.RotateInput{
		Trigger: rotationDomain.Trigger(r.Trigger),
		Reason:  r.Reason,
	}
}

// RotationResponse represents a completed rotation.
type RotationResponse struct {
	RotationID       string    `json:"rotation_id"`
	Trigger          string    `json:"trigger"`
	PreviousKeyEpoch uint64    `json:"previous_key_epoch"`
	NewKeyEpoch      uint64    `json:"new_key_epoch"`
	NewFingerprint   string    `json:"new_fingerprint"`
	RotatedAt        time.Time `json:"rotated_at"`
	OverlapEndsAt    time.Time `json:"overlap_ends_at"`
}

// MapResultToResponse converts a rotation result to an API response.
func MapResultToResponse(result *rotationDomain.Result) RotationResponse {
	return RotationResponse{
		RotationID:       result.RotationID.String(),
		Trigger:          string(result.Trigger),
		PreviousKeyEpoch: result.PreviousKeyEpoch,
		NewKeyEpoch:      result.NewKeyEpoch,
		NewFingerprint:   result.NewFingerprint,
		RotatedAt:        result.RotatedAt,
		OverlapEndsAt:    result.OverlapEndsAt,
	}
}

// StatusResponse describes the key ring without exposing material.
type StatusResponse struct {
	CurrentEpoch          uint64                   `json:"current_epoch"`
	CurrentFingerprint    string                   `json:"current_fingerprint"`
	CurrentCreatedAt      time.Time                `json:"current_created_at"`
	KeyAgeSeconds         int64                    `json:"key_age_seconds"`
	MaxKeyAgeSeconds      int64                    `json:"max_key_age_seconds"`
	RotationDue           bool                     `json:"rotation_due"`
	RotationInProgress    bool                     `json:"rotation_in_progress"`
	DeprecatedEpoch       *uint64                  `json:"deprecated_epoch,omitempty"`
	DeprecatedFingerprint string                   `json:"deprecated_fingerprint,omitempty"`
	OverlapEndsAt         *time.Time               `json:"overlap_ends_at,omitempty"`
	Retired               []keysDomain.EpochWindow `json:"retired"`
}

// MapStatusToResponse converts a rotation status to an API response.
func MapStatusToResponse(status *rotationDomain.Status) StatusResponse {
	retired := status.Retired
	if retired == nil {
		retired = []keysDomain.EpochWindow{}
	}
	return StatusResponse{
		CurrentEpoch:          status.CurrentEpoch,
		CurrentFingerprint:    status.CurrentFingerprint,
		CurrentCreatedAt:      status.CurrentCreatedAt,
		KeyAgeSeconds:         int64(status.KeyAge / time.Second),
		MaxKeyAgeSeconds:      int64(status.MaxKeyAge / time.Second),
		RotationDue:           status.RotationDue,
		RotationInProgress:    status.InProgress,
		DeprecatedEpoch:       status.DeprecatedEpoch,
		DeprecatedFingerprint: status.DeprecatedFingerprint,
		OverlapEndsAt:         status.OverlapEndsAt,
		Retired:               retired,
	}
}
