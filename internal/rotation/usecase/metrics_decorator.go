package usecase

import (
	"context"
	"time"

	"github.com/allisson/dominion/internal/metrics"
	rotationDomain "github.com/allisson/dominion/internal/rotation/domain"
)

// rotationManagerWithMetrics decorates RotationManager with metrics instrumentation.
type rotationManagerWithMetrics struct {
	next    RotationManager
	metrics metrics.BusinessMetrics
}

// NewRotationManagerWithMetrics wraps a RotationManager with metrics recording.
func NewRotationManagerWithMetrics(manager RotationManager, m metrics.BusinessMetrics) RotationManager {
	return &rotationManagerWithMetrics{
		next:    manager,
		metrics: m,
	}
}

// Rotate records metrics for rotations, labelled by trigger.
func (r *rotationManagerWithMetrics) Rotate(
	ctx context.Context,
	input *rotationDomain.RotateInput,
) (*rotationDomain.Result, error) {
	start := time.Now()
	result, err := r.next.Rotate(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
	} else {
		r.metrics.SetKeyEpoch(result.NewKeyEpoch)
	}

	operation := "rotate_" + string(input.Trigger)
	r.metrics.RecordOperation(ctx, "rotation", operation, status)
	r.metrics.RecordDuration(ctx, "rotation", operation, time.Since(start), status)

	return result, err
}

// Run delegates to the wrapped manager.
func (r *rotationManagerWithMetrics) Run(ctx context.Context) error {
	return r.next.Run(ctx)
}

// Status records metrics for status reads.
func (r *rotationManagerWithMetrics) Status(ctx context.Context) (*rotationDomain.Status, error) {
	status, err := r.next.Status(ctx)

	result := "success"
	if err != nil {
		result = "error"
	} else {
		r.metrics.SetKeyEpoch(status.CurrentEpoch)
	}
	r.metrics.RecordOperation(ctx, "rotation", "status", result)

	return status, err
}
