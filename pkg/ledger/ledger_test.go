package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/easygo-cv/cvforge/pkg/clock"
)

func TestBalanceCreatesAccountLazily(t *testing.T) {
	l := New()

	if got := l.Balance("u1"); got != DefaultInitialTokens {
		t.Errorf("expected initial balance %d, got %d", DefaultInitialTokens, got)
	}

	// Second lookup must not re-grant the allowance.
	l.Consume("u1", 2)
	if got := l.Balance("u1"); got != 3 {
		t.Errorf("expected balance 3, got %d", got)
	}
}

func TestConsumeInsufficientLeavesStateUnchanged(t *testing.T) {
	l := New(WithInitialTokens(1))

	if l.Consume("u1", 2) {
		t.Fatal("expected consume to fail")
	}
	if got := l.Balance("u1"); got != 1 {
		t.Errorf("expected balance 1, got %d", got)
	}
	if got := l.Stats("u1").TotalRequests; got != 0 {
		t.Errorf("expected 0 requests after failed consume, got %d", got)
	}
}

func TestConsumeUpdatesCounters(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	l := New(WithClock(fake))

	if !l.Consume("u1", 2) {
		t.Fatal("expected consume to succeed")
	}

	s := l.Stats("u1")
	if s.Balance != 3 {
		t.Errorf("expected balance 3, got %d", s.Balance)
	}
	if s.TotalRequests != 1 {
		t.Errorf("expected 1 request, got %d", s.TotalRequests)
	}
	if s.LastUsedAt == nil || !s.LastUsedAt.Equal(fake.Now()) {
		t.Errorf("expected last used %v, got %v", fake.Now(), s.LastUsedAt)
	}
}

func TestStatsBeforeFirstUseHasNoLastUsed(t *testing.T) {
	l := New()
	if s := l.Stats("u1"); s.LastUsedAt != nil {
		t.Errorf("expected nil last used, got %v", s.LastUsedAt)
	}
}

func TestCreditHasNoUpperBound(t *testing.T) {
	l := New()
	l.Credit("u1", 1000)
	if got := l.Balance("u1"); got != DefaultInitialTokens+1000 {
		t.Errorf("expected %d, got %d", DefaultInitialTokens+1000, got)
	}
}

func TestConcurrentConsumeExactlyOneWins(t *testing.T) {
	l := New(WithInitialTokens(1))

	const workers = 50
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			wins <- l.Consume("u1", 1)
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	succeeded := 0
	for ok := range wins {
		if ok {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly 1 successful consume, got %d", succeeded)
	}
	if got := l.Balance("u1"); got != 0 {
		t.Errorf("expected balance 0, got %d", got)
	}
}

func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	l := New(WithInitialTokens(10))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Consume("u1", 3)
		}()
	}
	wg.Wait()

	if got := l.Balance("u1"); got < 0 {
		t.Errorf("balance went negative: %d", got)
	}
}

func TestSystemStatsCountsCreditedConsumption(t *testing.T) {
	l := New()
	l.Consume("u1", 5)
	l.Credit("u1", 10)
	l.Consume("u1", 4)
	l.Consume("u2", 1)

	s := l.SystemStats()
	if s.TotalAccounts != 2 {
		t.Errorf("expected 2 accounts, got %d", s.TotalAccounts)
	}
	// 5 + 4 + 1, regardless of the top-up in between.
	if s.TotalTokensConsumed != 10 {
		t.Errorf("expected 10 tokens consumed, got %d", s.TotalTokensConsumed)
	}
}
