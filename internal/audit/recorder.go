package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StreamSink receives a best-effort copy of every entry for external
// consumers (SIEM). Failures must not fail the Append.
type StreamSink interface {
	Publish(ctx context.Context, entry Entry) error
}

// Recorder captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Recorder struct {
	store  Store
	stream StreamSink
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithStream attaches a best-effort stream sink.
func WithStream(sink StreamSink) Option {
	return func(r *Recorder) { r.stream = sink }
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists the entry, assigning an ID and timestamp when absent.
// Persistence failure is returned to the caller; stream publication is
// best-effort and never fails the record.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return err
	}
	if r.stream != nil {
		// Best effort: the durable store already has the entry.
		_ = r.stream.Publish(ctx, entry)
	}
	return nil
}

// ListByActor exposes the trail for a single actor.
func (r *Recorder) ListByActor(ctx context.Context, actor string) ([]Entry, error) {
	return r.store.ListByActor(ctx, actor)
}
