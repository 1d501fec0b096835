package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditPublisher publishes audit events for lifecycle and retention
// operations. *mq.Publisher satisfies it; tests substitute a mock.
type AuditPublisher interface {
	PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error
}

// AuditEvent is the JSON body published for every auditable operation.
type AuditEvent struct {
	Action    string     `json:"action"`
	SessionID uuid.UUID  `json:"session_id"`
	ArchiveID *uuid.UUID `json:"archive_id,omitempty"`
	ActorID   string     `json:"actor_id"`
	Detail    string     `json:"detail,omitempty"`
	At        time.Time  `json:"at"`
}

// publishAudit emits an audit event best-effort: the mutating operation has
// already committed, so a broker hiccup is logged, never turned into a
// caller-visible failure.
func publishAudit(ctx context.Context, pub AuditPublisher, log *zap.Logger, exchange, routingKey string, ev AuditEvent) {
	if pub == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := pub.PublishJSON(ctx, exchange, routingKey, ev); err != nil {
		log.Warn("audit event publish failed",
			zap.String("action", ev.Action),
			zap.String("session_id", ev.SessionID.String()),
			zap.Error(err))
	}
}
