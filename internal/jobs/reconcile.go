package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"esupervision/internal/notification/gateway"
	"esupervision/internal/notification/models"
	notifstore "esupervision/internal/notification/store"
	"esupervision/internal/platform/metrics"
	id "esupervision/pkg/domain"
	"esupervision/pkg/requestcontext"
)

// ReconcileWorker pulls delivery statuses back from the provider for records
// that have not reached a terminal status yet. Two instances run in
// production: one scoped to the worker-produced event types, one generic
// catch-all — both share this implementation and differ only in name and
// event-type filter.
type ReconcileWorker struct {
	name          string
	notifications notifstore.Store
	gateway       gateway.Client
	metrics       *metrics.Metrics
	lookback      time.Duration
	// eventTypes scopes the candidate query; empty means every type.
	eventTypes []string
	log        *log.Logger
}

func NewReconcileWorker(
	name string,
	notifications notifstore.Store,
	gw gateway.Client,
	m *metrics.Metrics,
	lookback time.Duration,
	eventTypes []string,
	logger *log.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		name:          name,
		notifications: notifications,
		gateway:       gw,
		metrics:       m,
		lookback:      lookback,
		eventTypes:    eventTypes,
		log:           logger,
	}
}

// Name returns the worker's lock and log identity.
func (w *ReconcileWorker) Name() string { return w.name }

func (w *ReconcileWorker) Run(ctx context.Context) error {
	since := requestcontext.Now(ctx).Add(-w.lookback)

	// Terminal records are already filtered out here, so a delivered
	// notification is never re-queried.
	unresolved, err := w.notifications.ListUnresolvedSince(ctx, w.eventTypes, since)
	if err != nil {
		return fmt.Errorf("list unresolved notifications: %w", err)
	}
	if len(unresolved) == 0 {
		return nil
	}

	byReference := make(map[string][]models.Notification)
	for _, record := range unresolved {
		byReference[record.Reference] = append(byReference[record.Reference], record)
	}

	// New status value -> local record ids, for one grouped update per status.
	updates := make(map[string][]id.NotificationID)
	for reference, records := range byReference {
		statuses, err := w.pollReference(ctx, reference)
		if err != nil {
			w.metrics.JobItemError.WithLabelValues(w.name).Inc()
			w.log.Printf("job %s: poll reference %s: %v", w.name, reference, err)
			continue
		}
		for _, record := range records {
			status, ok := statuses[record.ProviderID]
			if !ok || status == record.Status {
				continue
			}
			updates[status] = append(updates[status], record.ID)
		}
	}

	now := requestcontext.Now(ctx)
	for status, ids := range updates {
		changed, err := w.notifications.UpdateStatusBatch(ctx, ids, status, now)
		if err != nil {
			w.metrics.JobItemError.WithLabelValues(w.name).Inc()
			w.log.Printf("job %s: apply status %s to %d records: %v", w.name, status, len(ids), err)
			continue
		}
		w.metrics.StatusUpdates.WithLabelValues(status).Add(float64(changed))
	}
	return nil
}

// pollReference pages through the provider's status listing for one
// reference, returning provider id -> latest status.
func (w *ReconcileWorker) pollReference(ctx context.Context, reference string) (map[string]string, error) {
	statuses := make(map[string]string)
	cursor := ""
	for {
		page, err := w.gateway.Statuses(ctx, reference, cursor)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			statuses[item.ProviderID] = item.Status
		}
		if !page.HasNextPage || page.NextCursor == "" {
			return statuses, nil
		}
		cursor = page.NextCursor
	}
}
