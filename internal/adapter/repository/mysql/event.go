package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

type EventRepository struct{ db *gorm.DB }

func NewEventRepository(db *gorm.DB) *EventRepository { return &EventRepository{db: db} }

func (r *EventRepository) Append(ctx context.Context, e *event.Outbox) error {
	if e.EventID == "" {
		e.EventID = id.NewID32()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EventRepository) Pending(ctx context.Context, limit int) ([]event.Outbox, error) {
	var out []event.Outbox
	res := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&out)
	return out, res.Error
}

func (r *EventRepository) MarkPublished(ctx context.Context, rowID uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&event.Outbox{}).
		Where("id = ?", rowID).
		Update("published_at", at).Error
}

func (r *EventRepository) MarkFailed(ctx context.Context, rowID uint64, reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	return r.db.WithContext(ctx).Model(&event.Outbox{}).
		Where("id = ?", rowID).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}
