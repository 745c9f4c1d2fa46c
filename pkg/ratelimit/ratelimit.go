// Package ratelimit bounds request frequency per caller with a sliding
// window: an admitted request occupies a window slot for exactly the window
// duration, and rejected requests occupy nothing.
package ratelimit

import (
	"sync"
	"time"

	"github.com/easygo-cv/cvforge/pkg/clock"
)

// Defaults matching the service's admission policy.
const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

// Limiter admits up to limit requests per caller within a trailing window.
// Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	clock   clock.Clock
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimit sets the maximum admitted requests per window.
func WithLimit(n int) Option {
	return func(l *Limiter) { l.limit = n }
}

// WithWindow sets the trailing window duration.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// WithClock sets the clock. Useful for testing.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New creates a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string][]time.Time),
		limit:   DefaultLimit,
		window:  DefaultWindow,
		clock:   clock.System{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records the request timestamp and returns true when the caller is
// within limits. Stale timestamps are pruned on every check; a rejected
// request's timestamp is never retained, so rejections cannot extend the
// window.
func (l *Limiter) Admit(callerID string) bool {
	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.windows[callerID][:0]
	for _, ts := range l.windows[callerID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.windows[callerID] = kept
		return false
	}

	l.windows[callerID] = append(kept, now)
	return true
}

// Limit returns the configured per-window request limit.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration { return l.window }
