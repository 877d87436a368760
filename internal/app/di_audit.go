package app

import (
	"context"
	"fmt"
	"time"

	auditRepository "github.com/allisson/dominion/internal/audit/repository"
	auditService "github.com/allisson/dominion/internal/audit/service"
	"github.com/allisson/dominion/internal/config"
)

// Audit sinks.
const (
	AuditSinkLog      = "log"
	AuditSinkDatabase = "database"
	AuditSinkFile     = "file"
	AuditSinkKafka    = "kafka"
)

// AuditEventRepository is the audit_events table: a sink plus retention cleanup.
type AuditEventRepository interface {
	auditService.Sink
	DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}

// AuditEventRepository returns the audit_events repository for the configured driver.
func (c *Container) AuditEventRepository() (AuditEventRepository, error) {
	c.auditEventRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeErr("auditEventRepo", fmt.Errorf("failed to get database for audit event repository: %w", err))
			return
		}
		switch c.config.DBDriver {
		case "mysql":
			c.auditEventRepo = auditRepository.NewMySQLAuditEventRepository(db)
		case "postgres":
			c.auditEventRepo = auditRepository.NewPostgreSQLAuditEventRepository(db)
		default:
			c.storeErr("auditEventRepo", fmt.Errorf("unsupported database driver: %s", c.config.DBDriver))
		}
	})
	return c.auditEventRepo, c.loadErr("auditEventRepo")
}

// AuditSink returns the primary persistence sink selected by AUDIT_SINK.
func (c *Container) AuditSink() (auditService.Sink, error) {
	c.auditSinkInit.Do(func() {
		sink, err := c.initAuditSink()
		if err != nil {
			c.storeErr("auditSink", err)
			return
		}
		c.auditSink = sink
	})
	return c.auditSink, c.loadErr("auditSink")
}

// AuditFallback returns the local rotating file used when the primary sink fails, or
// nil when the primary sink is already a local file or the log.
func (c *Container) AuditFallback() (*auditRepository.FileSink, error) {
	c.auditFallbackInit.Do(func() {
		if c.config.AuditSink == AuditSinkFile || c.config.AuditSink == AuditSinkLog || c.config.AuditSink == "" {
			return
		}
		sink, err := auditRepository.NewFileSink(auditRepository.FileSinkConfig{
			Path:         c.config.AuditFallbackPath,
			RotationTime: c.config.AuditFileRotationTime,
			MaxAge:       c.config.AuditFileMaxAge,
		})
		if err != nil {
			c.storeErr("auditFallback", fmt.Errorf("failed to open audit fallback file: %w", err))
			return
		}
		c.auditFallback = sink
		c.onShutdown("audit fallback", sink.Close)
	})
	return c.auditFallback, c.loadErr("auditFallback")
}

// AuditDispatcher returns the background persistence queue.
func (c *Container) AuditDispatcher() (*auditService.Dispatcher, error) {
	c.auditDispatcherInit.Do(func() {
		dispatcher, err := c.initAuditDispatcher()
		if err != nil {
			c.storeErr("auditDispatcher", err)
			return
		}
		c.auditDispatcher = dispatcher
	})
	return c.auditDispatcher, c.loadErr("auditDispatcher")
}

// AuditLedger returns the in-memory ledger feeding the dispatcher.
func (c *Container) AuditLedger() (*auditService.Ledger, error) {
	c.auditLedgerInit.Do(func() {
		dispatcher, err := c.AuditDispatcher()
		if err != nil {
			c.storeErr("auditLedger", err)
			return
		}
		c.auditLedger = auditService.NewLedger(c.config.AuditCapacity, c.Clock(), dispatcher)
	})
	return c.auditLedger, c.loadErr("auditLedger")
}

func (c *Container) initAuditSink() (auditService.Sink, error) {
	switch c.config.AuditSink {
	case AuditSinkLog, "":
		return auditRepository.NewLogSink(c.Logger()), nil
	case AuditSinkDatabase:
		return c.AuditEventRepository()
	case AuditSinkFile:
		sink, err := auditRepository.NewFileSink(auditRepository.FileSinkConfig{
			Path:         c.config.AuditFilePath,
			RotationTime: c.config.AuditFileRotationTime,
			MaxAge:       c.config.AuditFileMaxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file sink: %w", err)
		}
		c.onShutdown("audit file sink", sink.Close)
		return sink, nil
	case AuditSinkKafka:
		brokers := config.ParseList(c.config.AuditKafkaBrokers)
		if len(brokers) == 0 {
			return nil, fmt.Errorf("AUDIT_KAFKA_BROKERS is required for the kafka audit sink")
		}
		sink := auditRepository.NewKafkaSink(auditRepository.KafkaSinkConfig{
			Brokers: brokers,
			Topic:   c.config.AuditKafkaTopic,
		})
		c.onShutdown("audit kafka sink", sink.Close)
		return sink, nil
	default:
		return nil, fmt.Errorf("unsupported audit sink: %s", c.config.AuditSink)
	}
}

func (c *Container) initAuditDispatcher() (*auditService.Dispatcher, error) {
	sink, err := c.AuditSink()
	if err != nil {
		return nil, err
	}
	fallback, err := c.AuditFallback()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	var fallbackSink auditService.Sink
	if fallback != nil {
		fallbackSink = fallback
	}

	return auditService.NewDispatcher(
		sink,
		fallbackSink,
		c.Clock(),
		c.Logger(),
		businessMetrics,
		auditService.DispatcherConfig{
			QueueSize: c.config.AuditQueueSize,
			Backoff:   retryBackoff(c.config.AuditRetryBackoff, c.config.AuditMaxRetries),
		},
	), nil
}

// retryBackoff doubles first for each retry: 2s, 4s, 8s for (2s, 3).
func retryBackoff(first time.Duration, retries int) []time.Duration {
	if first <= 0 || retries <= 0 {
		return []time.Duration{}
	}
	backoff := make([]time.Duration, retries)
	for i := range backoff {
		backoff[i] = first << i
	}
	return backoff
}
