package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thea-app/thea/internal/platform/queue"
)

// AuditEvent represents a record published to the audit_logging queue.
type AuditEvent struct {
	ActorID  string         `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditPublisher publishes messages to a named queue.
type AuditPublisher interface {
	Publish(ctx context.Context, queueName string, message any, opts queue.PublishOptions) error
}

// AuditLogger emits audit events onto the audit queue. Delivery is
// best-effort; failures are logged and never escalate to the caller.
type AuditLogger struct {
	publisher AuditPublisher
	logger    *slog.Logger
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(publisher AuditPublisher, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{publisher: publisher, logger: logger}
}

// Record publishes the audit event.
func (l *AuditLogger) Record(ctx context.Context, event AuditEvent) error {
	if l == nil || l.publisher == nil {
		return errors.New("audit logger not initialised")
	}
	if event.Action == "" || event.Entity == "" || event.EntityID == "" {
		return errors.New("audit event requires action/entity/entity_id")
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := l.publisher.Publish(ctx, queue.QueueAuditLogging, event, queue.PublishOptions{}); err != nil {
		if l.logger != nil {
			l.logger.Warn("audit publish failed",
				slog.String("action", event.Action),
				slog.String("entity_id", event.EntityID),
				slog.Any("error", err))
		}
		return nil
	}
	return nil
}
