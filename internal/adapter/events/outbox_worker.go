package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
)

// OutboxWorker drains committed outbox rows to a publisher. Delivery is at
// least once; rows that fail stay pending and are retried next tick.
type OutboxWorker struct {
	logger    *slog.Logger
	outbox    event.Repository
	publisher event.Publisher
	interval  time.Duration
	batchSize int
}

func NewOutboxWorker(logger *slog.Logger, outbox event.Repository, publisher event.Publisher, interval time.Duration, batchSize int) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxWorker{
		logger: logger, outbox: outbox, publisher: publisher, interval: interval, batchSize: batchSize,
	}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce publishes one batch and reports how many rows went out.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (int, error) {
	records, err := w.outbox.Pending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range records {
		if err := w.publisher.Publish(ctx, rec); err != nil {
			metrics.ObserveOutbox(err)
			if mErr := w.outbox.MarkFailed(ctx, rec.ID, err.Error()); mErr != nil {
				return sent, mErr
			}
			continue
		}
		metrics.ObserveOutbox(nil)
		if err := w.outbox.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
