// Package service implements the in-memory audit ledger and the dispatcher that
// persists recorded events to a pluggable sink.
package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
)

// DefaultCapacity is the number of events the ledger keeps in memory.
const DefaultCapacity = 1000

// Enqueuer accepts events for asynchronous persistence without blocking.
type Enqueuer interface {
	Enqueue(event auditDomain.Event) bool
}

// Ledger is a fixed-capacity ring buffer of audit events. When full, the oldest
// event is overwritten and counted as evicted.
type Ledger struct {
	mu      sync.Mutex
	events  []auditDomain.Event
	next    int
	size    int
	evicted uint64

	clock      clockwork.Clock
	dispatcher Enqueuer
}

// NewLedger creates a ledger holding up to capacity events. dispatcher may be nil.
func NewLedger(capacity int, clock clockwork.Clock, dispatcher Enqueuer) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		events:     make([]auditDomain.Event, capacity),
		clock:      clock,
		dispatcher: dispatcher,
	}
}

// Record stores event, assigning an ID and timestamp when missing, and hands it to
// the dispatcher.
func (l *Ledger) Record(event auditDomain.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.Must(uuid.NewV7())
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.clock.Now().UTC()
	}

	l.mu.Lock()
	if l.size == len(l.events) {
		l.evicted++
	} else {
		l.size++
	}
	l.events[l.next] = event
	l.next = (l.next + 1) % len(l.events)
	l.mu.Unlock()

	if l.dispatcher != nil {
		l.dispatcher.Enqueue(event)
	}
}

// Recent returns up to n events, newest first. n <= 0 returns every held event.
func (l *Ledger) Recent(n int) []auditDomain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]auditDomain.Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.events)) % len(l.events)
		out = append(out, l.events[idx])
	}
	return out
}

// Len returns the number of events held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Evicted returns how many events were overwritten since startup.
func (l *Ledger) Evicted() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}

// Report summarizes events recorded within the last window.
func (l *Ledger) Report(window time.Duration) auditDomain.ComplianceSummary {
	end := l.clock.Now().UTC()
	start := end.Add(-window)

	summary := auditDomain.ComplianceSummary{
		WindowStart:      start,
		WindowEnd:        end,
		ByType:           make(map[auditDomain.EventType]int),
		ByOutcome:        make(map[auditDomain.Outcome]int),
		ByTypeAndOutcome: make(map[string]int),
		Providers:        make(map[string]int),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.each(func(e auditDomain.Event) {
		if e.CreatedAt.Before(start) {
			return
		}
		summary.TotalEvents++
		summary.ByType[e.Type]++
		summary.ByOutcome[e.Outcome]++
		summary.ByTypeAndOutcome[e.Key()]++
		if e.Provider != "" {
			summary.Providers[e.Provider]++
		}
		if e.IsAnomalyTrip() {
			summary.AnomalyTrips++
		}
	})
	summary.Evicted = l.evicted
	return summary
}

// AnomalyTripsSince counts gate anomaly trips recorded at or after since.
func (l *Ledger) AnomalyTripsSince(since time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	l.each(func(e auditDomain.Event) {
		if e.IsAnomalyTrip() && !e.CreatedAt.Before(since) {
			count++
		}
	})
	return count
}

// each walks held events oldest first. Caller holds mu.
func (l *Ledger) each(fn func(auditDomain.Event)) {
	start := (l.next - l.size + len(l.events)) % len(l.events)
	for i := 0; i < l.size; i++ {
		fn(l.events[(start+i)%len(l.events)])
	}
}
