// Package circuit provides a small consecutive-failure circuit breaker for
// calls to external collaborators. Breakers are constructed explicitly and
// injected into clients; there are no package-level instances.
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"esupervision/pkg/platform/sentinel"
)

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
)

// StateChange reports transitions caused by a recorded outcome so callers can
// log open/close events exactly once.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker opens after N consecutive failures and closes again after M
// consecutive successes. While open, callers should fail fast and fall back
// to "no data" rather than blocking on a dead upstream.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	probeAfter       time.Duration
	openedAt         time.Time
	lastProbe        time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// WithSuccessThreshold sets how many consecutive successes close an open circuit.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) { b.successThreshold = n }
}

// WithProbeInterval sets how long Execute fails fast before letting a single
// probe call through an open circuit.
func WithProbeInterval(d time.Duration) Option {
	return func(b *Breaker) { b.probeAfter = d }
}

// New creates a closed breaker. Defaults: 5 failures to open, 3 successes to close.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 3,
		probeAfter:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// RecordFailure notes a failed call. It returns whether callers should use
// their fallback, and whether this failure opened the circuit.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.successCount = 0
	if b.state == StateOpen {
		return true, StateChange{}
	}
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess notes a successful call. It returns whether callers should
// use the primary path, and whether this success closed the circuit.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			return true, StateChange{Closed: true}
		}
		return false, StateChange{}
	}
	b.failureCount = 0
	return true, StateChange{}
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
}

// Execute runs fn through the breaker. While the circuit is open it fails
// fast with sentinel.ErrUnavailable without invoking fn; one probe call is
// let through per probe interval so the breaker can observe recovery.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if b.IsOpen() && !b.allowProbe() {
		return fmt.Errorf("%s circuit open: %w", b.name, sentinel.ErrUnavailable)
	}
	if err := fn(ctx); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// allowProbe lets a single call through an open circuit once per probe
// interval, starting one interval after the circuit opened.
func (b *Breaker) allowProbe() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return true
	}
	since := b.openedAt
	if b.lastProbe.After(since) {
		since = b.lastProbe
	}
	if time.Since(since) < b.probeAfter {
		return false
	}
	b.lastProbe = time.Now()
	return true
}
