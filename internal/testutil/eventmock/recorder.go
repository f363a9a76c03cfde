package eventmock

import (
	"context"
	"sync"
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/event"
)

var _ event.Repository = (*Recorder)(nil)

// Recorder keeps appended events in memory. AppendErr, when set, fails every Append.
type Recorder struct {
	mu        sync.Mutex
	Events    []event.Outbox
	AppendErr error
}

func (r *Recorder) Append(_ context.Context, e *event.Outbox) error {
	if r.AppendErr != nil {
		return r.AppendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = uint64(len(r.Events) + 1)
	r.Events = append(r.Events, *e)
	return nil
}

func (r *Recorder) Pending(_ context.Context, limit int) ([]event.Outbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Outbox
	for _, e := range r.Events {
		if e.PublishedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Recorder) MarkPublished(_ context.Context, id uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Events {
		if r.Events[i].ID == id {
			r.Events[i].PublishedAt = &at
		}
	}
	return nil
}

func (r *Recorder) MarkFailed(_ context.Context, id uint64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Events {
		if r.Events[i].ID == id {
			r.Events[i].Attempts++
			r.Events[i].LastError = reason
		}
	}
	return nil
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
