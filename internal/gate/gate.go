// Package gate implements the zero-trust admission gate in front of token minting:
// request well-formedness, per-provider sliding-window rate limits, and a failure
// counter that locks a provider out after repeated validation failures.
package gate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	"github.com/allisson/dominion/internal/entropy"
)

// Status is the outcome of an admission check.
type Status string

const (
	StatusAdmitted    Status = "admitted"
	StatusRateLimited Status = "rate_limited"
	StatusAnomaly     Status = "anomaly"
)

// Decision is the result of Admit.
type Decision struct {
	Status     Status
	RetryAfter time.Duration
}

// Config holds gate limits.
type Config struct {
	RateLimit          int
	RateWindow         time.Duration
	FailureLimit       int
	FailureWindow      time.Duration
	CoolDown           time.Duration
	MaxMetadataEntries int
	MaxMetadataKeyLen  int
	MaxMetadataValLen  int
}

// DefaultConfig returns the standard limits: 60 admissions per minute, anomaly on the
// 11th failure within an hour, one hour cool-down.
func DefaultConfig() Config {
	return Config{
		RateLimit:          60,
		RateWindow:         time.Minute,
		FailureLimit:       10,
		FailureWindow:      time.Hour,
		CoolDown:           time.Hour,
		MaxMetadataEntries: 32,
		MaxMetadataKeyLen:  64,
		MaxMetadataValLen:  512,
	}
}

// AuditRecorder receives gate events.
type AuditRecorder interface {
	Record(event auditDomain.Event)
}

type providerState struct {
	admissions []time.Time
	failures   []time.Time
	trippedAt  *time.Time
}

// Gate tracks admission and failure windows per provider. States are created lazily.
type Gate struct {
	mu     sync.Mutex
	states map[string]*providerState

	cfg      Config
	clock    clockwork.Clock
	recorder AuditRecorder
	logger   *slog.Logger
}

// New creates a gate. recorder may be nil.
func New(cfg Config, clock clockwork.Clock, recorder AuditRecorder, logger *slog.Logger) *Gate {
	defaults := DefaultConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaults.RateWindow
	}
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = defaults.FailureLimit
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = defaults.FailureWindow
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = defaults.CoolDown
	}
	if cfg.MaxMetadataEntries <= 0 {
		cfg.MaxMetadataEntries = defaults.MaxMetadataEntries
	}
	if cfg.MaxMetadataKeyLen <= 0 {
		cfg.MaxMetadataKeyLen = defaults.MaxMetadataKeyLen
	}
	if cfg.MaxMetadataValLen <= 0 {
		cfg.MaxMetadataValLen = defaults.MaxMetadataValLen
	}
	return &Gate{
		states:   make(map[string]*providerState),
		cfg:      cfg,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// Inspect checks request well-formedness and refuses metadata values that look like
// long-lived credentials. It holds no state.
func (g *Gate) Inspect(provider string, metadata map[string]string) error {
	if strings.TrimSpace(provider) == "" {
		return fmt.Errorf("%w: provider must not be blank", ErrMalformedRequest)
	}
	if len(metadata) > g.cfg.MaxMetadataEntries {
		return fmt.Errorf("%w: metadata has %d entries, limit is %d",
			ErrMalformedRequest, len(metadata), g.cfg.MaxMetadataEntries)
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := metadata[k]
		if k == "" || len(k) > g.cfg.MaxMetadataKeyLen {
			return fmt.Errorf("%w: metadata key length must be 1..%d", ErrMalformedRequest, g.cfg.MaxMetadataKeyLen)
		}
		if len(v) > g.cfg.MaxMetadataValLen {
			return fmt.Errorf("%w: metadata value for %q exceeds %d characters",
				ErrMalformedRequest, k, g.cfg.MaxMetadataValLen)
		}
		if entropy.LooksLikeSecret(v) {
			return fmt.Errorf("%w: key %q", ErrSecretInMetadata, k)
		}
	}
	return nil
}

// Admit decides whether provider may mint now. Only admitted requests occupy the
// rate window. Rejections return a *RateLimitError or ErrBehaviorAnomaly alongside
// the decision.
func (g *Gate) Admit(provider string) (Decision, error) {
	now := g.clock.Now()

	g.mu.Lock()
	state := g.state(provider)

	if g.anomalous(state, now) {
		g.mu.Unlock()
		g.record(auditDomain.EventAdmit, auditDomain.OutcomeAnomaly, provider, "provider locked")
		return Decision{Status: StatusAnomaly}, fmt.Errorf("%w: provider %s", ErrBehaviorAnomaly, provider)
	}

	state.admissions = prune(state.admissions, now.Add(-g.cfg.RateWindow))
	if len(state.admissions) >= g.cfg.RateLimit {
		retryAfter := state.admissions[0].Add(g.cfg.RateWindow).Sub(now)
		g.mu.Unlock()

		g.record(auditDomain.EventAdmit, auditDomain.OutcomeRateLimited, provider,
			fmt.Sprintf("retry_after=%s", retryAfter))
		return Decision{Status: StatusRateLimited, RetryAfter: retryAfter},
			&RateLimitError{Provider: provider, RetryAfter: retryAfter}
	}

	state.admissions = append(state.admissions, now)
	g.mu.Unlock()
	return Decision{Status: StatusAdmitted}, nil
}

// RecordFailure counts a failure for provider. The failure that pushes the count over
// the limit within the failure window trips the anomaly state. Returns true when this
// call tripped it. Failures are not counted while the provider is locked, so the log
// never holds more than FailureLimit+1 entries.
func (g *Gate) RecordFailure(provider string) bool {
	now := g.clock.Now()

	g.mu.Lock()
	state := g.state(provider)
	if g.anomalous(state, now) {
		g.mu.Unlock()
		return false
	}
	state.failures = prune(state.failures, now.Add(-g.cfg.FailureWindow))
	state.failures = append(state.failures, now)

	tripped := len(state.failures) > g.cfg.FailureLimit
	if tripped {
		trippedAt := now
		state.trippedAt = &trippedAt
	}
	failures := len(state.failures)
	g.mu.Unlock()

	if tripped {
		g.logger.Warn("behavior anomaly detected",
			slog.String("provider", provider),
			slog.Int("failures", failures),
		)
		g.record(auditDomain.EventGate, auditDomain.OutcomeAnomalyTrip, provider,
			fmt.Sprintf("failures=%d window=%s", failures, g.cfg.FailureWindow))
	}
	return tripped
}

// Reset clears the anomaly state and failure log for provider.
func (g *Gate) Reset(provider string) {
	g.mu.Lock()
	state, ok := g.states[provider]
	if ok {
		state.trippedAt = nil
		state.failures = nil
	}
	g.mu.Unlock()

	g.logger.Info("gate reset", slog.String("provider", provider))
	g.record(auditDomain.EventGate, auditDomain.OutcomeReset, provider, "operator reset")
}

// IsAnomalous reports whether provider is currently locked.
func (g *Gate) IsAnomalous(provider string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.states[provider]
	return ok && g.anomalous(state, g.clock.Now())
}

// ProviderSnapshot is the exported state of one provider.
type ProviderSnapshot struct {
	Provider         string     `json:"provider"`
	AdmissionsInRate int        `json:"admissions_in_window"`
	FailuresInWindow int        `json:"failures_in_window"`
	Anomalous        bool       `json:"anomalous"`
	TrippedAt        *time.Time `json:"tripped_at,omitempty"`
	CoolDownEndsAt   *time.Time `json:"cool_down_ends_at,omitempty"`
}

// Snapshot returns the state of every known provider sorted by name.
func (g *Gate) Snapshot() []ProviderSnapshot {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]ProviderSnapshot, 0, len(g.states))
	for name, state := range g.states {
		snap := ProviderSnapshot{
			Provider:         name,
			AdmissionsInRate: countSince(state.admissions, now.Add(-g.cfg.RateWindow)),
			FailuresInWindow: countSince(state.failures, now.Add(-g.cfg.FailureWindow)),
		}
		if g.anomalous(state, now) {
			trippedAt := *state.trippedAt
			endsAt := trippedAt.Add(g.cfg.CoolDown)
			snap.Anomalous = true
			snap.TrippedAt = &trippedAt
			snap.CoolDownEndsAt = &endsAt
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// state returns the provider state, creating it lazily. Caller holds mu.
func (g *Gate) state(provider string) *providerState {
	state, ok := g.states[provider]
	if !ok {
		state = &providerState{}
		g.states[provider] = state
	}
	return state
}

// anomalous clears an expired trip and reports whether state is locked. Caller holds mu.
func (g *Gate) anomalous(state *providerState, now time.Time) bool {
	if state.trippedAt == nil {
		return false
	}
	if !now.Before(state.trippedAt.Add(g.cfg.CoolDown)) {
		state.trippedAt = nil
		state.failures = nil
		return false
	}
	return true
}

func (g *Gate) record(eventType auditDomain.EventType, outcome auditDomain.Outcome, provider, detail string) {
	if g.recorder == nil {
		return
	}
	g.recorder.Record(auditDomain.Event{
		Type:     eventType,
		Outcome:  outcome,
		Provider: provider,
		Detail:   detail,
	})
}

// prune drops timestamps at or before cutoff. ts is ordered oldest first.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func countSince(ts []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range ts {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
