package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
	"github.com/allisson/dominion/internal/metrics"
)

// DefaultRetryBackoff is the wait before each persistence retry.
var DefaultRetryBackoff = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	QueueSize int
	// Backoff lists the wait before each retry; its length is the retry count.
	Backoff []time.Duration
}

// Dispatcher persists audit events from a bounded queue with a single consumer, so
// events reach the sink in the order they were recorded. Enqueue never blocks on the
// primary sink.
//
// When the primary sink fails, the event is written to the fallback sink at once and
// parked on a retry list served by a timer, so the consumer keeps draining the queue
// while the sink is down. Once the retries are exhausted the event is dropped and
// counted. A full queue writes the event to the fallback and counts it.
type Dispatcher struct {
	queue    chan auditDomain.Event
	sink     Sink
	fallback Sink
	backoff  []time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  metrics.BusinessMetrics

	// retries is owned by the consumer goroutine.
	retries    []pendingRetry
	maxRetries int

	persisted atomic.Uint64
	retried   atomic.Uint64
	fellBack  atomic.Uint64
	dropped   atomic.Uint64
	queueFull atomic.Uint64
}

type pendingRetry struct {
	event   auditDomain.Event
	attempt int
	due     time.Time
}

var errRetryBacklogFull = errors.New("retry backlog full")

// NewDispatcher creates a dispatcher writing to sink. fallback may be nil; it must be
// safe for concurrent use since Enqueue writes to it when the queue is full.
func NewDispatcher(
	sink Sink,
	fallback Sink,
	clock clockwork.Clock,
	logger *slog.Logger,
	businessMetrics metrics.BusinessMetrics,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultRetryBackoff
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Dispatcher{
		queue:      make(chan auditDomain.Event, cfg.QueueSize),
		sink:       sink,
		fallback:   fallback,
		backoff:    cfg.Backoff,
		clock:      clock,
		logger:     logger,
		metrics:    businessMetrics,
		maxRetries: cfg.QueueSize,
	}
}

// Enqueue queues event for persistence. Returns false when the queue is full; the
// event then goes to the fallback sink only.
func (d *Dispatcher) Enqueue(event auditDomain.Event) bool {
	select {
	case d.queue <- event:
		return true
	default:
		d.logger.Warn("audit queue full, writing event to fallback",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", string(event.Type)),
		)
		d.writeFallback(context.Background(), event)
		d.queueFull.Add(1)
		d.metrics.RecordOperation(context.Background(), "audit", "dispatch", "queue_full")
		return false
	}
}

// Start consumes the queue until ctx is cancelled. Events still queued or waiting for
// a retry at shutdown get a single last write attempt.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting audit dispatcher",
		slog.Int("queue_size", cap(d.queue)),
		slog.Int("max_retries", len(d.backoff)),
	)

	var (
		timer   clockwork.Timer
		timerC  <-chan time.Time
		armedAt time.Time
	)
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	arm := func() {
		next, ok := d.nextDue()
		if !ok {
			disarm()
			return
		}
		if timer != nil && !next.Before(armedAt) {
			return
		}
		disarm()
		timer = d.clock.NewTimer(next.Sub(d.clock.Now()))
		timerC, armedAt = timer.Chan(), next
	}

	for {
		select {
		case <-ctx.Done():
			disarm()
			d.drain()
			d.logger.Info("stopping audit dispatcher")
			return nil
		case event := <-d.queue:
			d.deliver(ctx, event)
			arm()
		case <-timerC:
			timer, timerC = nil, nil
			d.retryDue(ctx)
			arm()
		}
	}
}

func (d *Dispatcher) drain() {
	ctx := context.Background()

	for _, pending := range d.retries {
		d.retried.Add(1)
		if err := d.sink.Write(ctx, pending.event); err != nil {
			d.drop(pending.event, err)
			continue
		}
		d.persisted.Add(1)
	}
	d.retries = nil

	for {
		select {
		case event := <-d.queue:
			if err := d.sink.Write(ctx, event); err != nil {
				d.writeFallback(ctx, event)
				d.drop(event, err)
				continue
			}
			d.persisted.Add(1)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event auditDomain.Event) {
	err := d.sink.Write(ctx, event)
	if err == nil {
		d.persisted.Add(1)
		d.metrics.RecordOperation(ctx, "audit", "dispatch", "success")
		return
	}

	d.logger.Warn("audit sink write failed",
		slog.String("event_id", event.ID.String()),
		slog.Any("error", err),
	)
	d.writeFallback(ctx, event)
	d.schedule(event, 0, err)
}

// schedule parks event for its next retry, or drops it once the backoff list is used
// up. The oldest entry is dropped when the backlog is full.
func (d *Dispatcher) schedule(event auditDomain.Event, attempt int, err error) {
	if attempt >= len(d.backoff) {
		d.drop(event, err)
		return
	}
	if len(d.retries) >= d.maxRetries {
		oldest := d.retries[0]
		d.retries = d.retries[1:]
		d.drop(oldest.event, errRetryBacklogFull)
	}
	d.retries = append(d.retries, pendingRetry{
		event:   event,
		attempt: attempt,
		due:     d.clock.Now().Add(d.backoff[attempt]),
	})
}

// retryDue writes every parked event whose backoff has elapsed, oldest first.
func (d *Dispatcher) retryDue(ctx context.Context) {
	now := d.clock.Now()

	var due []pendingRetry
	waiting := d.retries[:0]
	for _, pending := range d.retries {
		if pending.due.After(now) {
			waiting = append(waiting, pending)
			continue
		}
		due = append(due, pending)
	}
	d.retries = waiting

	for _, pending := range due {
		d.retried.Add(1)
		err := d.sink.Write(ctx, pending.event)
		if err == nil {
			d.persisted.Add(1)
			d.metrics.RecordOperation(ctx, "audit", "dispatch", "retried")
			d.logger.Info("audit event persisted after retry",
				slog.String("event_id", pending.event.ID.String()),
				slog.Int("attempt", pending.attempt+1),
			)
			continue
		}
		d.schedule(pending.event, pending.attempt+1, err)
	}
}

func (d *Dispatcher) nextDue() (time.Time, bool) {
	if len(d.retries) == 0 {
		return time.Time{}, false
	}
	next := d.retries[0].due
	for _, pending := range d.retries[1:] {
		if pending.due.Before(next) {
			next = pending.due
		}
	}
	return next, true
}

func (d *Dispatcher) writeFallback(ctx context.Context, event auditDomain.Event) {
	if d.fallback == nil {
		return
	}
	if err := d.fallback.Write(ctx, event); err != nil {
		d.logger.Error("audit fallback write failed",
			slog.String("event_id", event.ID.String()),
			slog.Any("error", err),
		)
		return
	}
	d.fellBack.Add(1)
}

func (d *Dispatcher) drop(event auditDomain.Event, err error) {
	d.dropped.Add(1)
	d.metrics.RecordOperation(context.Background(), "audit", "dispatch", "dropped")
	d.logger.Error("audit event dropped",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.Any("error", err),
	)
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() auditDomain.DispatchStats {
	return auditDomain.DispatchStats{
		Persisted: d.persisted.Load(),
		Retried:   d.retried.Load(),
		Fallback:  d.fellBack.Load(),
		Dropped:   d.dropped.Load(),
		QueueFull: d.queueFull.Load(),
	}
}
