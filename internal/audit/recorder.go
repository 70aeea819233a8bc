package audit

import (
	"context"
	"time"

	id "esupervision/pkg/domain"
)

// Store is the append-only sink for audit facts.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOffender(ctx context.Context, offenderID id.OffenderID) ([]Event, error)
	ListByCheckin(ctx context.Context, checkinID id.CheckinID) ([]Event, error)
}

// Recorder captures structured audit facts. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Record(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return r.store.Append(ctx, event)
}

func (r *Recorder) ListByOffender(ctx context.Context, offenderID id.OffenderID) ([]Event, error) {
	return r.store.ListByOffender(ctx, offenderID)
}

func (r *Recorder) ListByCheckin(ctx context.Context, checkinID id.CheckinID) ([]Event, error) {
	return r.store.ListByCheckin(ctx, checkinID)
}
