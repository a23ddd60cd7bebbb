package guard

import (
	"sync"
	"time"
)

// SlidingWindowCounter counts events per key inside a fixed time window.
// Timestamps older than the window are pruned on every access, so memory per
// key is bounded by the request rate times the window size.
//
// Updates are atomic per call: undercounting would let more traffic through
// than configured, so the map and the per-key slices are mutated under one
// mutex rather than per-key locks.
type SlidingWindowCounter struct {
	mu     sync.Mutex
	window time.Duration
	keys   map[string][]time.Time
}

func NewSlidingWindowCounter(window time.Duration) *SlidingWindowCounter {
	if window <= 0 {
		window = time.Second
	}
	return &SlidingWindowCounter{
		window: window,
		keys:   make(map[string][]time.Time),
	}
}

// Record prunes stale timestamps for key, appends now, and returns the
// resulting count inside the window.
func (c *SlidingWindowCounter) Record(key string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.prune(key, now)
	ts = append(ts, now)
	c.keys[key] = ts
	return len(ts)
}

// Count returns the in-window count for key without recording an event.
func (c *SlidingWindowCounter) Count(key string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.prune(key, now)
	if len(ts) == 0 {
		delete(c.keys, key)
		return 0
	}
	c.keys[key] = ts
	return len(ts)
}

// Timestamps returns a copy of the in-window timestamps for key, oldest first.
func (c *SlidingWindowCounter) Timestamps(key string, now time.Time) []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.prune(key, now)
	c.keys[key] = ts
	out := make([]time.Time, len(ts))
	copy(out, ts)
	return out
}

// Reset discards all state for key.
func (c *SlidingWindowCounter) Reset(key string) {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
}

// Sweep drops keys whose every timestamp has aged out of the window.
// Called periodically so idle clients do not pin memory.
func (c *SlidingWindowCounter) Sweep(now time.Time) {
	cutoff := now.Add(-c.window)
	c.mu.Lock()
	for k, ts := range c.keys {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(c.keys, k)
		}
	}
	c.mu.Unlock()
}

// prune must be called with c.mu held.
func (c *SlidingWindowCounter) prune(key string, now time.Time) []time.Time {
	ts := c.keys[key]
	cutoff := now.Add(-c.window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		ts = append(ts[:0], ts[i:]...)
	}
	return ts
}
