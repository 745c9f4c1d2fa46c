// Package breaker implements a circuit breaker around the generation
// service. Consecutive failures trip it open; while open, calls are refused
// without any network I/O until a cool-down elapses and a single trial call
// probes whether the service recovered.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/easygo-cv/cvforge/pkg/clock"
)

// State represents the circuit breaker state.
type State int

const (
	// Closed is the normal operating state. Calls flow through.
	Closed State = iota

	// Open is the tripped state. Calls are rejected immediately.
	Open

	// HalfOpen is the recovery testing state. One trial call is allowed.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the circuit is open and rejecting calls.
var ErrOpen = errors.New("circuit open: generation service temporarily unavailable")

// IsOpen reports whether err is because the circuit is open.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

// Default values matching the generation service's failure profile.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 60 * time.Second
)

// Status is a diagnostic snapshot of the breaker.
type Status struct {
	State       string     `json:"state"`
	Failures    int        `json:"failures"`
	Threshold   int        `json:"threshold"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

// Breaker tracks consecutive failures of an external dependency. Safe for
// concurrent use.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	trialTaken  bool
	lastFailure time.Time

	threshold int
	cooldown  time.Duration
	clock     clock.Clock
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets consecutive failures before opening the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.threshold = n }
}

// WithCooldown sets how long the circuit stays open before a trial call.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) { b.cooldown = d }
}

// WithClock sets the clock. Useful for testing.
func WithClock(c clock.Clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// New creates a closed Breaker.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:     Closed,
		threshold: DefaultFailureThreshold,
		cooldown:  DefaultCooldown,
		clock:     clock.System{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. While half-open, exactly one
// trial call is admitted per cool-down window; concurrent calls arriving
// before the trial resolves are refused.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case Open:
		return ErrOpen
	case HalfOpen:
		if b.trialTaken {
			return ErrOpen
		}
		b.trialTaken = true
	}
	return nil
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = Closed
	b.trialTaken = false
}

// RecordFailure counts a failure, tripping the circuit open once the
// threshold is reached. A failed half-open trial reopens immediately and
// restarts the cool-down.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.clock.Now()
	b.trialTaken = false

	if b.failures >= b.threshold {
		b.state = Open
	}
}

// State returns the current state, applying the Open→HalfOpen transition if
// the cool-down has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Status returns a diagnostic snapshot.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		State:     b.currentState().String(),
		Failures:  b.failures,
		Threshold: b.threshold,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailure = &t
	}
	return s
}

// currentState lazily transitions Open→HalfOpen once the cool-down has
// elapsed. Callers must hold b.mu.
func (b *Breaker) currentState() State {
	if b.state == Open && b.clock.Now().Sub(b.lastFailure) > b.cooldown {
		b.state = HalfOpen
		b.trialTaken = false
	}
	return b.state
}
