package service

import (
	"context"

	auditDomain "github.com/allisson/dominion/internal/audit/domain"
)

// Sink persists audit events. The dispatcher calls the primary sink from its consumer
// goroutine only. The fallback sink is also written from Enqueue callers.
type Sink interface {
	Write(ctx context.Context, event auditDomain.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event auditDomain.Event) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, event auditDomain.Event) error {
	return f(ctx, event)
}
