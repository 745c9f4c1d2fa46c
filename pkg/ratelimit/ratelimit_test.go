package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/easygo-cv/cvforge/pkg/clock"
)

func newTestLimiter(t *testing.T) (*Limiter, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return New(WithClock(fake)), fake
}

func TestAdmitUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(t)

	for i := 0; i < DefaultLimit; i++ {
		if !l.Admit("u1") {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
	}
	if l.Admit("u1") {
		t.Error("request over the limit was admitted")
	}
}

func TestWindowSlides(t *testing.T) {
	l, fake := newTestLimiter(t)

	for i := 0; i < DefaultLimit; i++ {
		l.Admit("u1")
	}
	if l.Admit("u1") {
		t.Fatal("expected rejection at the limit")
	}

	fake.Advance(61 * time.Second)
	if !l.Admit("u1") {
		t.Error("expected admission after the window slid past the burst")
	}
}

func TestRejectionLeavesNoTimestamp(t *testing.T) {
	l, fake := newTestLimiter(t)

	for i := 0; i < DefaultLimit; i++ {
		l.Admit("u1")
	}
	// Hammer rejections; they must not extend the window.
	for i := 0; i < 20; i++ {
		l.Admit("u1")
	}

	fake.Advance(61 * time.Second)
	if !l.Admit("u1") {
		t.Error("rejected requests extended the window")
	}
}

func TestCallersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)

	for i := 0; i < DefaultLimit; i++ {
		l.Admit("u1")
	}
	if !l.Admit("u2") {
		t.Error("caller u2 throttled by u1's traffic")
	}
}

func TestPartialExpiry(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	l := New(WithClock(fake), WithLimit(3), WithWindow(10*time.Second))

	l.Admit("u1") // t=0
	fake.Advance(6 * time.Second)
	l.Admit("u1") // t=6
	l.Admit("u1") // t=6
	if l.Admit("u1") {
		t.Fatal("expected rejection with 3 in-window requests")
	}

	fake.Advance(5 * time.Second) // t=11: only the t=0 entry expired
	if !l.Admit("u1") {
		t.Error("expected admission after oldest entry expired")
	}
	if l.Admit("u1") {
		t.Error("expected rejection, window is full again")
	}
}

func TestConcurrentAdmitNeverExceedsLimit(t *testing.T) {
	l, _ := newTestLimiter(t)

	const workers = 100
	var wg sync.WaitGroup
	admitted := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- l.Admit("u1")
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	if count != DefaultLimit {
		t.Errorf("expected exactly %d admissions, got %d", DefaultLimit, count)
	}
}
