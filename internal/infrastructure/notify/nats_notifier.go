// Package notify publishes terminal file-state events for downstream
// consumers. Events are advisory: a failed publish is logged and dropped,
// never surfaced to the pipeline.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

type EventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewEventPublisher(conn *nats.Conn, subject string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *EventPublisher) NotifyTerminal(ctx context.Context, event domain.FileEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal file event", "file_id", event.FileID, "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn("file event dropped", "file_id", event.FileID, "event", event.Event, "error", err)
		return
	}
	p.logger.Debug("file event published", "file_id", event.FileID, "event", event.Event)
}
