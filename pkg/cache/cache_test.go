package cache

import (
	"testing"
	"time"

	"github.com/easygo-cv/cvforge/pkg/clock"
)

func newTestCache(t *testing.T) (*Cache, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return New(WithClock(fake)), fake
}

func TestGetReturnsStoredResult(t *testing.T) {
	c, _ := newTestCache(t)

	c.Put("fp", "result")
	got, ok := c.Get("fp")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "result" {
		t.Errorf("expected %q, got %v", "result", got)
	}
}

func TestGetMissingFingerprint(t *testing.T) {
	c, _ := newTestCache(t)
	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss for unknown fingerprint")
	}
}

func TestExpiredEntryIsAbsentAndRemoved(t *testing.T) {
	c, fake := newTestCache(t)

	c.Put("fp", "result")
	fake.Advance(DefaultExpiry + time.Second)

	if _, ok := c.Get("fp"); ok {
		t.Fatal("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, len=%d", c.Len())
	}
}

func TestEntryValidAtExactExpiry(t *testing.T) {
	c, fake := newTestCache(t)

	c.Put("fp", "result")
	fake.Advance(DefaultExpiry)

	if _, ok := c.Get("fp"); !ok {
		t.Error("entry at exactly the expiry bound should still be valid")
	}
}

func TestPutOverwrites(t *testing.T) {
	c, _ := newTestCache(t)

	c.Put("fp", "old")
	c.Put("fp", "new")
	got, _ := c.Get("fp")
	if got != "new" {
		t.Errorf("expected overwrite, got %v", got)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	c, fake := newTestCache(t)

	c.Put("old", 1)
	fake.Advance(9 * time.Minute)
	c.Put("fresh", 2)
	fake.Advance(2 * time.Minute) // "old" is 11m, "fresh" is 2m

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("expected 1 swept entry, got %d", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("sweep removed a live entry")
	}
}

func TestFingerprintKeyOrderIndependent(t *testing.T) {
	a, err := Fingerprint("u1", "cv/optimize", map[string]int{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint("u1", "cv/optimize", map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("fingerprints differ for semantically identical payloads")
	}
}

func TestFingerprintDiscriminates(t *testing.T) {
	base, _ := Fingerprint("u1", "cv/optimize", map[string]int{"a": 1})

	if fp, _ := Fingerprint("u2", "cv/optimize", map[string]int{"a": 1}); fp == base {
		t.Error("different callers produced the same fingerprint")
	}
	if fp, _ := Fingerprint("u1", "cv/generate", map[string]int{"a": 1}); fp == base {
		t.Error("different operations produced the same fingerprint")
	}
	if fp, _ := Fingerprint("u1", "cv/optimize", map[string]int{"a": 2}); fp == base {
		t.Error("different payload values produced the same fingerprint")
	}
}

func TestFingerprintStructAndMapAgree(t *testing.T) {
	type payload struct {
		JobDescription string `json:"job_description"`
		Years          int    `json:"years"`
	}
	fromStruct, err := Fingerprint("u1", "cv/suggestions", payload{JobDescription: "Go engineer", Years: 3})
	if err != nil {
		t.Fatal(err)
	}
	fromMap, err := Fingerprint("u1", "cv/suggestions", map[string]any{
		"years":           3,
		"job_description": "Go engineer",
	})
	if err != nil {
		t.Fatal(err)
	}
	if fromStruct != fromMap {
		t.Error("struct and equivalent map payloads fingerprint differently")
	}
}
