// Package scheduler owns the timers for the unattended worker family. Each
// registered job gets its own ticker; runs are dispatched through a bounded
// pool so a slow job cannot starve the process of goroutines. Shutdown stops
// the timers and drains in-flight runs before returning, so a run finishes
// (and releases its cluster lock) before the process exits.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Job is a scheduled unit of work. Run must be safe to invoke concurrently
// with other jobs and idempotent under at-least-once execution; cross-instance
// exclusion is the job's own responsibility (via the cluster lock).
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job      Job
	interval time.Duration
}

// Scheduler runs registered jobs on fixed intervals.
type Scheduler struct {
	log     *log.Logger
	tracer  trace.Tracer
	entries []entry
	limit   int

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a scheduler dispatching at most maxConcurrent runs at a time.
func New(logger *log.Logger, maxConcurrent int) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		log:    logger,
		tracer: otel.Tracer("esupervision/scheduler"),
		limit:  maxConcurrent,
	}
}

// Register adds a job with its run interval. Must be called before Start.
func (s *Scheduler) Register(job Job, interval time.Duration) {
	s.entries = append(s.entries, entry{job: job, interval: interval})
}

// Start launches one timer goroutine per job and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(ctx)
	// Job bodies run outside the tick cancellation: Stop must drain an
	// in-flight run, not abort it mid-batch. Stop's own deadline bounds the
	// wait instead.
	runCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.stopped = make(chan struct{})
	s.mu.Unlock()

	pool := &errgroup.Group{}
	pool.SetLimit(s.limit)

	var timers sync.WaitGroup
	for _, e := range s.entries {
		timers.Add(1)
		go func(e entry) {
			defer timers.Done()
			ticker := time.NewTicker(e.interval)
			defer ticker.Stop()
			for {
				select {
				case <-tickCtx.Done():
					return
				case <-ticker.C:
					// TryGo skips the tick when the pool is saturated; the
					// next tick picks the work back up. Runs must tolerate
					// missed ticks anyway (lock misses do the same).
					if !pool.TryGo(func() error {
						s.runOne(runCtx, e.job)
						return nil
					}) {
						s.log.Printf("scheduler: pool saturated, skipping tick for %s", e.job.Name())
					}
				}
			}
		}(e)
	}

	go func() {
		timers.Wait()
		pool.Wait() // drain in-flight runs
		close(s.stopped)
	}()
}

// Stop cancels the timers and blocks until in-flight runs drain or the
// passed context expires. The deadline should stay inside the lock max-hold
// so an interrupted run's lock still expires for other instances.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runOne(ctx context.Context, job Job) {
	runCtx, span := s.tracer.Start(ctx, "job."+job.Name())
	defer span.End()

	if err := job.Run(runCtx); err != nil {
		span.RecordError(err)
		s.log.Printf("scheduler: job %s failed: %v", job.Name(), err)
	}
}
