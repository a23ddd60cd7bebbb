package guard

import (
	"testing"
	"time"
)

func TestSlidingWindowRecordAndPrune(t *testing.T) {
	c := NewSlidingWindowCounter(time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		got := c.Record("k", base.Add(time.Duration(i)*100*time.Millisecond))
		if got != i+1 {
			t.Fatalf("record %d: got count %d", i, got)
		}
	}

	// 1.2s after the first entry: everything at or before 200ms has aged out
	got := c.Record("k", base.Add(1200*time.Millisecond))
	if got != 3 {
		t.Fatalf("expected 3 in window after prune, got %d", got)
	}
}

func TestSlidingWindowKeysIndependent(t *testing.T) {
	c := NewSlidingWindowCounter(time.Second)
	now := time.Now()

	c.Record("a", now)
	c.Record("a", now)
	if got := c.Record("b", now); got != 1 {
		t.Fatalf("key b should not see key a's entries, got %d", got)
	}
}

func TestSlidingWindowResetAndSweep(t *testing.T) {
	c := NewSlidingWindowCounter(time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Record("a", base)
	c.Record("b", base)
	c.Reset("a")
	if got := c.Count("a", base); got != 0 {
		t.Fatalf("after reset: got %d", got)
	}

	c.Sweep(base.Add(2 * time.Second))
	if len(c.keys) != 0 {
		t.Fatalf("sweep left %d idle keys", len(c.keys))
	}
}

func TestSlidingWindowTimestampsOrdered(t *testing.T) {
	c := NewSlidingWindowCounter(10 * time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		c.Record("k", base.Add(time.Duration(i)*time.Second))
	}
	ts := c.Timestamps("k", base.Add(3*time.Second))
	if len(ts) != 4 {
		t.Fatalf("expected 4 timestamps, got %d", len(ts))
	}
	for i := 1; i < len(ts); i++ {
		if ts[i].Before(ts[i-1]) {
			t.Fatalf("timestamps out of order at %d", i)
		}
	}
}
