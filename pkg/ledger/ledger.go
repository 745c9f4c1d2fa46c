// Package ledger holds per-caller token balances. New callers start with a
// small free allowance; costed operations debit it before any expensive work
// runs, and nothing is refunded if that work later fails.
package ledger

import (
	"sync"
	"time"

	"github.com/easygo-cv/cvforge/pkg/clock"
)

// DefaultInitialTokens is the balance granted on first reference.
const DefaultInitialTokens = 5

// Account is a caller's balance plus bookkeeping counters.
type Account struct {
	balance       int
	consumed      int
	createdAt     time.Time
	lastUsedAt    time.Time
	totalRequests int
}

// Stats is the externally visible snapshot of one account.
type Stats struct {
	CallerID      string     `json:"caller_id"`
	Balance       int        `json:"tokens_remaining"`
	TotalRequests int        `json:"total_requests"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used,omitempty"`
}

// SystemStats aggregates the whole ledger.
type SystemStats struct {
	TotalAccounts       int `json:"total_users"`
	TotalTokensConsumed int `json:"total_tokens_consumed"`
}

// Ledger is an in-memory account table. Safe for concurrent use; the
// check-then-debit in Consume is atomic per caller.
type Ledger struct {
	mu            sync.Mutex
	accounts      map[string]*Account
	initialTokens int
	clock         clock.Clock
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithInitialTokens sets the balance granted to new accounts.
func WithInitialTokens(n int) Option {
	return func(l *Ledger) { l.initialTokens = n }
}

// WithClock sets the clock. Useful for testing.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:      make(map[string]*Account),
		initialTokens: DefaultInitialTokens,
		clock:         clock.System{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// getOrCreate returns the account for callerID, creating it with the initial
// allowance if absent. Idempotent. Callers must hold l.mu.
func (l *Ledger) getOrCreate(callerID string) *Account {
	acct, ok := l.accounts[callerID]
	if !ok {
		acct = &Account{
			balance:   l.initialTokens,
			createdAt: l.clock.Now(),
		}
		l.accounts[callerID] = acct
	}
	return acct
}

// Balance returns the caller's remaining tokens, creating the account if
// it does not exist yet.
func (l *Ledger) Balance(callerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getOrCreate(callerID).balance
}

// Consume debits amount from the caller's balance if it covers it. The check
// and the debit happen under one lock, so two callers racing on the same
// account can never jointly overdraw it. Insufficient balance is reported
// through the return value, not an error.
func (l *Ledger) Consume(callerID string, amount int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.getOrCreate(callerID)
	if acct.balance < amount {
		return false
	}
	acct.balance -= amount
	acct.consumed += amount
	acct.lastUsedAt = l.clock.Now()
	acct.totalRequests++
	return true
}

// Credit adds amount to the caller's balance. No upper bound is enforced.
func (l *Ledger) Credit(callerID string, amount int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getOrCreate(callerID).balance += amount
}

// Stats returns a snapshot of the caller's account.
func (l *Ledger) Stats(callerID string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.getOrCreate(callerID)
	s := Stats{
		CallerID:      callerID,
		Balance:       acct.balance,
		TotalRequests: acct.totalRequests,
		CreatedAt:     acct.createdAt,
	}
	if !acct.lastUsedAt.IsZero() {
		t := acct.lastUsedAt
		s.LastUsedAt = &t
	}
	return s
}

// SystemStats aggregates across all accounts. Consumption is tracked per
// debit rather than derived from initial-minus-current balance, so totals
// stay correct after accounts are topped up.
func (l *Ledger) SystemStats() SystemStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	consumed := 0
	for _, acct := range l.accounts {
		consumed += acct.consumed
	}
	return SystemStats{
		TotalAccounts:       len(l.accounts),
		TotalTokensConsumed: consumed,
	}
}
