package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"esupervision/internal/casedirectory"
	checkinservice "esupervision/internal/checkin/service"
	offendermodels "esupervision/internal/offender/models"
	offenderstore "esupervision/internal/offender/store"
	"esupervision/internal/platform/metrics"
	id "esupervision/pkg/domain"
	"esupervision/pkg/requestcontext"
)

// CreationName is the creation worker's lock and log identity.
const CreationName = "checkin-creation"

// CreationWorker creates the day's check-ins: offenders due today by the
// schedule arithmetic, resolved against the case directory in chunks, then
// handed to the creation service which enforces uniqueness and fans out the
// created notifications per row.
type CreationWorker struct {
	offenders offenderstore.Store
	directory casedirectory.Client
	creator   *checkinservice.Creator
	metrics   *metrics.Metrics
	log       *log.Logger
}

func NewCreationWorker(offenders offenderstore.Store, directory casedirectory.Client, creator *checkinservice.Creator, m *metrics.Metrics, logger *log.Logger) *CreationWorker {
	return &CreationWorker{
		offenders: offenders,
		directory: directory,
		creator:   creator,
		metrics:   m,
		log:       logger,
	}
}

func (w *CreationWorker) Run(ctx context.Context) error {
	today := offendermodels.DateOf(requestcontext.Now(ctx))

	due, err := w.offenders.ListDueOn(ctx, today)
	if err != nil {
		return fmt.Errorf("list due offenders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	details := w.fetchContacts(ctx, due)

	// Only resolvable offenders get a row this run; the rest are retried on
	// the next eligible date.
	candidates := make([]checkinservice.Candidate, 0, len(due))
	for _, offender := range due {
		contact, ok := details[offender.CaseReference]
		if !ok {
			w.metrics.JobItemError.WithLabelValues(CreationName).Inc()
			w.log.Printf("job %s: offender %s unresolvable in directory, skipped", CreationName, offender.ID)
			continue
		}
		candidates = append(candidates, checkinservice.Candidate{Offender: offender, Details: &contact})
	}
	if len(candidates) == 0 {
		return nil
	}

	reference := fmt.Sprintf("%s-%s", CreationName, today.Format("2006-01-02"))
	created, err := w.creator.CreateBatch(ctx, candidates, today, reference)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	w.log.Printf("job %s: created %d check-ins for %s", CreationName, created, today.Format("2006-01-02"))
	return nil
}

// fetchContacts resolves contact details in directory-sized chunks. A failed
// chunk degrades to "no data" for its offenders; the run carries on.
func (w *CreationWorker) fetchContacts(ctx context.Context, offenders []offendermodels.Offender) map[id.CaseReference]casedirectory.ContactDetails {
	refs := make([]id.CaseReference, len(offenders))
	for i, offender := range offenders {
		refs[i] = offender.CaseReference
	}

	var (
		mu  sync.Mutex
		out = make(map[id.CaseReference]casedirectory.ContactDetails, len(refs))
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, chunk := range casedirectory.Chunk(refs) {
		group.Go(func() error {
			resolved, err := w.directory.GetBatch(groupCtx, chunk)
			if err != nil {
				w.metrics.JobItemError.WithLabelValues(CreationName).Inc()
				w.log.Printf("job %s: contact chunk of %d failed: %v", CreationName, len(chunk), err)
				return nil
			}
			mu.Lock()
			for ref, details := range resolved {
				out[ref] = details
			}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait() // goroutines only ever return nil; failures are logged per chunk
	return out
}
