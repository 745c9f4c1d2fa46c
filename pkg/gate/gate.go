// Package gate is the admission pipeline for costed operations: rate limit,
// then result cache, then token debit, in that order. Only requests that
// clear all three reach the generation step.
package gate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/easygo-cv/cvforge/pkg/cache"
	"github.com/easygo-cv/cvforge/pkg/ledger"
	"github.com/easygo-cv/cvforge/pkg/ratelimit"
)

// ErrRateLimited is returned when the caller exceeded the request window.
var ErrRateLimited = errors.New("rate limit exceeded")

// InsufficientTokensError reports a balance too low for the operation.
type InsufficientTokensError struct {
	Required  int
	Available int
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens: required %d, available %d", e.Required, e.Available)
}

// Authorization confirms tokens were debited for a cache-missed request.
// The holder runs the operation and stores the outcome under Fingerprint.
type Authorization struct {
	Fingerprint string
	Debited     int
}

// Outcome is the result of an admission check: either a cached replay or an
// authorization to proceed.
type Outcome struct {
	Cached        any
	CacheHit      bool
	Authorization Authorization
}

// Gate orchestrates the limiter, cache, and ledger.
type Gate struct {
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	ledger  *ledger.Ledger
}

// New wires a Gate.
func New(limiter *ratelimit.Limiter, c *cache.Cache, l *ledger.Ledger) *Gate {
	return &Gate{limiter: limiter, cache: c, ledger: l}
}

// Authorize admits a costed operation. A cache hit returns the stored result
// and debits nothing. On a miss, the declared cost is debited atomically
// before the caller performs any expensive work; tokens are not refunded if
// that work later fails.
func (g *Gate) Authorize(callerID, operation string, cost int, payload any) (*Outcome, error) {
	if !g.limiter.Admit(callerID) {
		slog.Info("rate limit exceeded", "caller", callerID, "operation", operation)
		return nil, ErrRateLimited
	}

	fp, err := cache.Fingerprint(callerID, operation, payload)
	if err != nil {
		return nil, err
	}

	if result, ok := g.cache.Get(fp); ok {
		slog.Info("cache hit", "caller", callerID, "operation", operation)
		return &Outcome{Cached: result, CacheHit: true}, nil
	}

	if !g.ledger.Consume(callerID, cost) {
		available := g.ledger.Balance(callerID)
		slog.Info("insufficient tokens",
			"caller", callerID, "operation", operation,
			"required", cost, "available", available)
		return nil, &InsufficientTokensError{Required: cost, Available: available}
	}

	return &Outcome{Authorization: Authorization{Fingerprint: fp, Debited: cost}}, nil
}

// StoreResult caches a completed operation's result under its fingerprint.
func (g *Gate) StoreResult(fingerprint string, result any) {
	g.cache.Put(fingerprint, result)
}

// Balance reports the caller's remaining tokens.
func (g *Gate) Balance(callerID string) int {
	return g.ledger.Balance(callerID)
}

// CallerStats reports the caller's account snapshot.
func (g *Gate) CallerStats(callerID string) ledger.Stats {
	return g.ledger.Stats(callerID)
}

// Credit tops up a caller's balance.
func (g *Gate) Credit(callerID string, amount int) {
	g.ledger.Credit(callerID, amount)
}

// SystemStats aggregates ledger totals plus the live cache entry count.
type SystemStats struct {
	ledger.SystemStats
	CachedRequests int `json:"cached_requests"`
}

// Stats returns the system-wide diagnostic snapshot.
func (g *Gate) Stats() SystemStats {
	return SystemStats{
		SystemStats:    g.ledger.SystemStats(),
		CachedRequests: g.cache.Len(),
	}
}
