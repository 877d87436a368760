// Package usecase implements the rotation manager: operator and incident rotations,
// the rotation scheduler and the background purge of deprecated keys.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	rotationDomain "github.com/allisson/dominion/internal/rotation/domain"
)

// Config holds scheduler settings.
type Config struct {
	// MaxKeyAge triggers a scheduled rotation.
	MaxKeyAge time.Duration
	// AnomalyThreshold triggers an incident rotation when trips within AnomalyWindow exceed it.
	AnomalyThreshold int
	AnomalyWindow    time.Duration
	// CheckInterval is how often Run evaluates the triggers.
	CheckInterval time.Duration
}

// DefaultConfig returns a 30 day key age, more than 10 anomaly trips in 24h, hourly checks.
func DefaultConfig() Config {
	return Config{
		MaxKeyAge:        30 * 24 * time.Hour,
		AnomalyThreshold: 10,
		AnomalyWindow:    24 * time.Hour,
		CheckInterval:    time.Hour,
	}
}

type rotationManager struct {
	keys      RootKeys
	anomalies AnomalyCounter
	recorder  AuditRecorder
	clock     clockwork.Clock
	logger    *slog.Logger
	cfg       Config

	inFlight atomic.Bool
	purgeAt  chan time.Time
}

// NewRotationManager creates a rotation manager. anomalies and recorder may be nil.
func NewRotationManager(
	keys RootKeys,
	anomalies AnomalyCounter,
	recorder AuditRecorder,
	clock clockwork.Clock,
	logger *slog.Logger,
	cfg Config,
) RotationManager {
	defaults := DefaultConfig()
	if cfg.MaxKeyAge <= 0 {
		cfg.MaxKeyAge = defaults.MaxKeyAge
	}
	if cfg.AnomalyThreshold <= 0 {
		cfg.AnomalyThreshold = defaults.AnomalyThreshold
	}
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = defaults.AnomalyWindow
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaults.CheckInterval
	}
	return &rotationManager{
		keys:      keys,
		anomalies: anomalies,
		recorder:  recorder,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		purgeAt:   make(chan time.Time, 1),
	}
}

// Rotate returns as soon as the new key is current. The purge of the demoted key is
// handed to Run.
func (m *rotationManager) Rotate(
	ctx context.Context,
	input *rotationDomain.RotateInput,
) (*rotationDomain.Result, error) {
	if !input.Trigger.Valid() {
		return nil, fmt.Errorf("%w: %q", rotationDomain.ErrInvalidTrigger, input.Trigger)
	}
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil, keysDomain.ErrRotationInProgress
	}
	defer m.inFlight.Store(false)

	rotation, err := m.keys.Rotate(ctx)
	if err != nil {
		outcome := auditDomain.OutcomeFailure
		if errors.Is(err, keysDomain.ErrRotationInProgress) {
			outcome = auditDomain.OutcomeRejected
		}
		m.record(auditDomain.EventRotate, outcome, fmt.Sprintf("trigger=%s: %s", input.Trigger, err))
		return nil, err
	}

	result := &rotationDomain.Result{
		RotationID:       uuid.Must(uuid.NewV7()),
		Trigger:          input.Trigger,
		PreviousKeyEpoch: rotation.PreviousEpoch,
		NewKeyEpoch:      rotation.NewEpoch,
		NewFingerprint:   rotation.NewFingerprint,
		RotatedAt:        rotation.RotatedAt,
		OverlapEndsAt:    rotation.OverlapEndsAt,
	}

	detail := fmt.Sprintf("rotation_id=%s trigger=%s previous_epoch=%d new_epoch=%d",
		result.RotationID, input.Trigger, result.PreviousKeyEpoch, result.NewKeyEpoch)
	if input.Reason != "" {
		detail += " reason=" + input.Reason
	}
	m.record(auditDomain.EventRotate, auditDomain.OutcomeSuccess, detail)

	m.logger.Info("rotation completed",
		slog.String("rotation_id", result.RotationID.String()),
		slog.String("trigger", string(input.Trigger)),
		slog.Uint64("new_epoch", result.NewKeyEpoch),
		slog.Time("overlap_ends_at", result.OverlapEndsAt),
	)

	m.schedulePurge(result.OverlapEndsAt)
	return result, nil
}

// schedulePurge replaces any pending purge deadline without blocking.
func (m *rotationManager) schedulePurge(at time.Time) {
	select {
	case <-m.purgeAt:
	default:
	}
	select {
	case m.purgeAt <- at:
	default:
	}
}

// Run evaluates the triggers once at start and then every CheckInterval, and purges
// the deprecated key when its overlap window closes. It returns nil when ctx is done.
func (m *rotationManager) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	var (
		purgeTimer clockwork.Timer
		purgeC     <-chan time.Time
	)
	schedule := func(at time.Time) {
		if purgeTimer != nil {
			purgeTimer.Stop()
		}
		purgeTimer = m.clock.NewTimer(max(at.Sub(m.clock.Now()), 0))
		purgeC = purgeTimer.Chan()
	}
	defer func() {
		if purgeTimer != nil {
			purgeTimer.Stop()
		}
	}()

	if status, err := m.keys.Status(ctx); err == nil && status.OverlapEndsAt != nil {
		schedule(*status.OverlapEndsAt)
	}
	m.logger.Info("rotation scheduler started",
		slog.Duration("check_interval", m.cfg.CheckInterval),
		slog.Duration("max_key_age", m.cfg.MaxKeyAge),
	)
	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("rotation scheduler stopped")
			return nil
		case at := <-m.purgeAt:
			schedule(at)
		case <-purgeC:
			purgeC = nil
			m.purge(ctx)
		case <-ticker.Chan():
			m.check(ctx)
		}
	}
}

// check purges anything overdue, then rotates when the current key is too old or the
// gate tripped too often since it became current.
func (m *rotationManager) check(ctx context.Context) {
	m.purge(ctx)

	status, err := m.keys.Status(ctx)
	if err != nil {
		m.logger.Error("failed to read key status", slog.Any("error", err))
		return
	}
	now := m.clock.Now()

	input := m.dueRotation(status, now)
	if input == nil {
		return
	}

	_, err = m.Rotate(ctx, input)
	switch {
	case err == nil:
	case errors.Is(err, keysDomain.ErrRotationInProgress):
		m.logger.Debug("rotation due but overlap still open",
			slog.String("trigger", string(input.Trigger)))
	default:
		m.logger.Error("scheduled rotation failed",
			slog.String("trigger", string(input.Trigger)),
			slog.Any("error", err),
		)
	}
}

func (m *rotationManager) dueRotation(status keysDomain.Status, now time.Time) *rotationDomain.RotateInput {
	if age := now.Sub(status.CurrentCreatedAt); age >= m.cfg.MaxKeyAge {
		return &rotationDomain.RotateInput{
			Trigger: rotationDomain.TriggerScheduled,
			Reason:  fmt.Sprintf("key age %s", age.Truncate(time.Second)),
		}
	}
	if m.anomalies == nil {
		return nil
	}

	// trips that happened before the current key was installed were already answered
	since := now.Add(-m.cfg.AnomalyWindow)
	if status.CurrentCreatedAt.After(since) {
		since = status.CurrentCreatedAt
	}
	if trips := m.anomalies.AnomalyTripsSince(since); trips > m.cfg.AnomalyThreshold {
		return &rotationDomain.RotateInput{
			Trigger: rotationDomain.TriggerIncident,
			Reason:  fmt.Sprintf("anomaly trips %d in %s", trips, m.cfg.AnomalyWindow),
		}
	}
	return nil
}

func (m *rotationManager) purge(ctx context.Context) {
	purged, err := m.keys.PurgeExpired(ctx)
	if purged != nil {
		outcome := auditDomain.OutcomeSuccess
		detail := fmt.Sprintf("epoch=%d", purged.Epoch)
		if err != nil {
			outcome = auditDomain.OutcomeFailure
			detail += ": " + err.Error()
		}
		m.record(auditDomain.EventPurge, outcome, detail)
	}
	if err != nil {
		m.logger.Error("failed to purge deprecated key", slog.Any("error", err))
	}
}

// Status reports the ring plus key age and whether a scheduled rotation is due.
func (m *rotationManager) Status(ctx context.Context) (*rotationDomain.Status, error) {
	ring, err := m.keys.Status(ctx)
	if err != nil {
		return nil, err
	}
	age := m.clock.Now().Sub(ring.CurrentCreatedAt)
	return &rotationDomain.Status{
		Status:      ring,
		KeyAge:      age,
		MaxKeyAge:   m.cfg.MaxKeyAge,
		RotationDue: age >= m.cfg.MaxKeyAge,
		InProgress:  m.inFlight.Load(),
	}, nil
}

func (m *rotationManager) record(eventType auditDomain.EventType, outcome auditDomain.Outcome, detail string) {
	if m.recorder == nil {
		return
	}
	m.recorder.Record(auditDomain.Event{
		Type:    eventType,
		Outcome: outcome,
		Detail:  detail,
	})
}
