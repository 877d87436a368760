package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records token authority operations.
type BusinessMetrics interface {
	// RecordOperation counts one operation. domain is "forge", "rotation" or "audit";
	// status is "success", "error" or a rejection reason.
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records how long an operation took.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordTokenIssued records the lifetime granted to a minted or renewed token.
	RecordTokenIssued(ctx context.Context, provider, category string, ttl time.Duration)

	// SetKeyEpoch publishes the epoch of the current root key.
	SetKeyEpoch(epoch uint64)
}

type businessMetrics struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
	tokenTTL   metric.Float64Histogram
	keyEpoch   atomic.Uint64
}

// tokenTTLBuckets spans the 5 minute floor up to the 24 hour ceiling.
var tokenTTLBuckets = []float64{300, 600, 900, 1800, 3600, 7200, 14400, 28800, 43200, 86400}

// NewBusinessMetrics creates the instruments under namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	b := &businessMetrics{}

	var err error
	b.operations, err = meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of token authority operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	b.durations, err = meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of token authority operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	b.tokenTTL, err = meter.Float64Histogram(
		fmt.Sprintf("%s_token_ttl_seconds", namespace),
		metric.WithDescription("Lifetime granted to issued tokens in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tokenTTLBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token ttl histogram: %w", err)
	}

	_, err = meter.Int64ObservableGauge(
		fmt.Sprintf("%s_root_key_epoch", namespace),
		metric.WithDescription("Epoch of the current root key"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if epoch := b.keyEpoch.Load(); epoch > 0 {
				o.Observe(int64(epoch))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create key epoch gauge: %w", err)
	}

	return b, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func (b *businessMetrics) RecordTokenIssued(ctx context.Context, provider, category string, ttl time.Duration) {
	b.tokenTTL.Record(ctx, ttl.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("category", category),
	))
}

func (b *businessMetrics) SetKeyEpoch(epoch uint64) {
	b.keyEpoch.Store(epoch)
}

// NoOpBusinessMetrics discards everything. Used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

func (n *NoOpBusinessMetrics) RecordTokenIssued(ctx context.Context, provider, category string, ttl time.Duration) {
}

func (n *NoOpBusinessMetrics) SetKeyEpoch(epoch uint64) {}
