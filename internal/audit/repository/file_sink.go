package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
)

// FileSinkConfig holds rotating file settings.
type FileSinkConfig struct {
	Path         string
	RotationTime time.Duration
	MaxAge       time.Duration
}

// FileSink appends audit events as JSON lines to a time-rotated file. It serves both
// as the "file" sink and as the dispatcher's local fallback.
type FileSink struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewFileSink opens a rotating writer at cfg.Path. The live file is a symlink to the
// current rotation.
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if cfg.RotationTime <= 0 {
		cfg.RotationTime = 24 * time.Hour
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}

	writer, err := rotatelogs.New(
		cfg.Path+".%Y%m%d%H%M",
		rotatelogs.WithLinkName(cfg.Path),
		rotatelogs.WithRotationTime(cfg.RotationTime),
		rotatelogs.WithMaxAge(cfg.MaxAge),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileSink{writer: writer}, nil
}

// NewWriterSink creates a file sink over an arbitrary writer.
func NewWriterSink(w io.Writer) *FileSink {
	return &FileSink{writer: w}
}

// Write appends event as one JSON line.
func (s *FileSink) Write(_ context.Context, event auditDomain.Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// Close closes the underlying writer when it supports it.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if closer, ok := s.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
