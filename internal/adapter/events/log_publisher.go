package events

import (
	"context"
	"log/slog"

	"github.com/kefkio/bloc-sacco/internal/domain/event"
)

// LoggingPublisher emits events to the structured log. Used when no broker is
// configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, e event.Outbox) error {
	p.logger.InfoContext(ctx, "domain event",
		"module", "events.log_publisher",
		"layer", "adapter",
		"event_id", e.EventID,
		"event_type", e.Type,
		"loan_id", e.LoanID,
		"subject", e.Subject,
		"amount", e.Amount,
		"payload", e.Payload,
	)
	return nil
}

var _ event.Publisher = (*LoggingPublisher)(nil)
