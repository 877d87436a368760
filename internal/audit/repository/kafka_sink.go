package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSinkConfig holds Kafka producer settings.
type KafkaSinkConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaSink publishes audit events to a Kafka topic keyed by provider, so a
// provider's events stay in one partition and keep their order.
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaSink creates a sink with a kafka-go writer for cfg.
func NewKafkaSink(cfg KafkaSinkConfig) *KafkaSink {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return NewKafkaSinkWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	})
}

// NewKafkaSinkWithWriter creates a sink over an existing writer.
func NewKafkaSinkWithWriter(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// Write publishes the event as JSON.
func (s *KafkaSink) Write(ctx context.Context, event auditDomain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Provider),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "outcome", Value: []byte(event.Outcome)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
