// Package jobs holds the scheduled worker family and the shared runner
// discipline they all follow: cluster lock, job log, one batch-scoped
// "today", per-item error isolation.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"esupervision/internal/platform/lock"
	"esupervision/internal/platform/metrics"
	"esupervision/pkg/requestcontext"
)

// Runner wraps every worker body with the shared run discipline. Failing to
// acquire the lock or to write the job log aborts the run (catastrophic by
// definition: it happens before the main query); everything inside the body
// is expected to isolate its own per-item failures.
type Runner struct {
	locker  lock.Locker
	logs    JobLogStore
	metrics *metrics.Metrics
	minHold time.Duration
	maxHold time.Duration
	log     *log.Logger
}

func NewRunner(locker lock.Locker, logs JobLogStore, m *metrics.Metrics, minHold, maxHold time.Duration, logger *log.Logger) *Runner {
	return &Runner{
		locker:  locker,
		logs:    logs,
		metrics: m,
		minHold: minHold,
		maxHold: maxHold,
		log:     logger,
	}
}

// Run executes body under the named cluster lock. A lock miss skips the run
// silently (another instance is on it); that is the normal multi-instance
// case, not an error.
func (r *Runner) Run(ctx context.Context, name string, body func(ctx context.Context) error) error {
	handle, held, err := r.locker.Acquire(ctx, name, r.minHold, r.maxHold)
	if err != nil {
		r.metrics.JobFailures.WithLabelValues(name).Inc()
		return fmt.Errorf("job %s: %w", name, err)
	}
	if !held {
		r.metrics.JobLockMiss.WithLabelValues(name).Inc()
		r.log.Printf("job %s: skipped, lock held elsewhere", name)
		return nil
	}
	defer func() {
		if err := handle.Release(ctx); err != nil {
			r.log.Printf("job %s: release lock: %v", name, err)
		}
	}()

	started := time.Now()
	entry := JobLog{ID: uuid.New(), Name: name, StartedAt: started}
	if err := r.logs.Start(ctx, entry); err != nil {
		r.metrics.JobFailures.WithLabelValues(name).Inc()
		return fmt.Errorf("job %s: start log: %w", name, err)
	}

	r.metrics.JobRuns.WithLabelValues(name).Inc()
	// The whole run shares one "today", so phase queries agree on the date
	// even when the run straddles midnight.
	runCtx := requestcontext.WithTime(ctx, started)

	bodyErr := body(runCtx)

	ended := time.Now()
	if err := r.logs.Finish(ctx, entry.ID, ended); err != nil {
		r.log.Printf("job %s: finish log: %v", name, err)
	}
	r.metrics.JobDuration.WithLabelValues(name).Observe(ended.Sub(started).Seconds())

	if bodyErr != nil {
		r.metrics.JobFailures.WithLabelValues(name).Inc()
		return fmt.Errorf("job %s: %w", name, bodyErr)
	}
	return nil
}

// Locked binds a worker body to the runner discipline under a fixed name,
// satisfying the scheduler's Job interface.
type Locked struct {
	name   string
	runner *Runner
	body   func(ctx context.Context) error
}

func NewLocked(name string, runner *Runner, body func(ctx context.Context) error) *Locked {
	return &Locked{name: name, runner: runner, body: body}
}

func (l *Locked) Name() string { return l.name }

func (l *Locked) Run(ctx context.Context) error {
	return l.runner.Run(ctx, l.name, l.body)
}
