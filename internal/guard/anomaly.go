package guard

import (
	"context"
	"math"
	"sync"
	"time"
)

const FilterAnomaly = "anomaly"

// AnomalyDetector watches per-client request timing for machine-generated
// polling: human/browser traffic has irregular inter-arrival intervals, a
// stuck client-side retry loop fires at a near-constant one. Once a client's
// in-window request count passes the rapid-fire threshold, the detector
// checks whether the interval standard deviation is tight and the mean sits
// inside the polling band; each such window earns a warning, and WarnLimit
// warnings block the client for a long cooldown.
//
// Keyed by client identity alone: the pattern matters across endpoints.
type AnomalyDetector struct {
	Window             time.Duration
	MaxRequests        int
	RapidFireThreshold int
	StdDevThreshold    time.Duration
	IntervalMin        time.Duration
	IntervalMax        time.Duration
	WarnLimit          int
	BlockFor           time.Duration

	counter *SlidingWindowCounter
	blocks  BlockStore

	mu       sync.Mutex
	warnings map[string]int
}

type AnomalyOpts struct {
	Window             time.Duration
	MaxRequests        int
	RapidFireThreshold int
	StdDevThreshold    time.Duration
	IntervalMin        time.Duration
	IntervalMax        time.Duration
	WarnLimit          int
	BlockFor           time.Duration
}

func NewAnomalyDetector(opts AnomalyOpts, blocks BlockStore) *AnomalyDetector {
	if opts.Window <= 0 {
		opts.Window = 10 * time.Second
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = 50
	}
	if opts.RapidFireThreshold <= 0 {
		opts.RapidFireThreshold = 20
	}
	if opts.StdDevThreshold <= 0 {
		opts.StdDevThreshold = 50 * time.Millisecond
	}
	if opts.IntervalMin <= 0 {
		opts.IntervalMin = 50 * time.Millisecond
	}
	if opts.IntervalMax <= 0 {
		opts.IntervalMax = 200 * time.Millisecond
	}
	if opts.WarnLimit <= 0 {
		opts.WarnLimit = 3
	}
	if opts.BlockFor <= 0 {
		opts.BlockFor = 60 * time.Second
	}
	return &AnomalyDetector{
		Window:             opts.Window,
		MaxRequests:        opts.MaxRequests,
		RapidFireThreshold: opts.RapidFireThreshold,
		StdDevThreshold:    opts.StdDevThreshold,
		IntervalMin:        opts.IntervalMin,
		IntervalMax:        opts.IntervalMax,
		WarnLimit:          opts.WarnLimit,
		BlockFor:           opts.BlockFor,
		counter:            NewSlidingWindowCounter(opts.Window),
		blocks:             blocks,
		warnings:           make(map[string]int),
	}
}

func (d *AnomalyDetector) Name() string { return FilterAnomaly }

func (d *AnomalyDetector) Evaluate(ctx context.Context, req Request, now time.Time) Decision {
	key := req.ClientID

	remain, blocked, err := d.blocks.Blocked(ctx, key)
	if err != nil {
		return Allow()
	}
	if blocked {
		return Reject(FilterAnomaly, "request pattern blocked", remain)
	}

	count := d.counter.Record(key, now)
	if count > d.MaxRequests {
		// window is full beyond the cap; oldest entries no longer matter
		d.counter.Reset(key)
		return Allow()
	}
	if count <= d.RapidFireThreshold {
		return Allow()
	}

	mean, stddev, ok := intervalStats(d.counter.Timestamps(key, now))
	if !ok || stddev >= d.StdDevThreshold || mean < d.IntervalMin || mean > d.IntervalMax {
		return Allow()
	}

	// one warning per detection window
	d.counter.Reset(key)

	d.mu.Lock()
	d.warnings[key]++
	warns := d.warnings[key]
	if warns >= d.WarnLimit {
		delete(d.warnings, key)
	}
	d.mu.Unlock()

	if warns >= d.WarnLimit {
		_ = d.blocks.Block(ctx, key, d.BlockFor)
		return Reject(FilterAnomaly, "machine-generated request pattern detected", d.BlockFor)
	}
	return Allow()
}

// Sweep drops window state for clients that went quiet.
func (d *AnomalyDetector) Sweep(now time.Time) { d.counter.Sweep(now) }

// Warnings reports the current warning count for a client (test hook / ops).
func (d *AnomalyDetector) Warnings(clientID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warnings[clientID]
}

// intervalStats computes the mean and standard deviation of the inter-arrival
// intervals of ts (oldest first). ok is false with fewer than two intervals.
func intervalStats(ts []time.Time) (mean, stddev time.Duration, ok bool) {
	if len(ts) < 3 {
		return 0, 0, false
	}
	n := len(ts) - 1
	intervals := make([]float64, n)
	var sum float64
	for i := 1; i < len(ts); i++ {
		iv := float64(ts[i].Sub(ts[i-1]))
		intervals[i-1] = iv
		sum += iv
	}
	m := sum / float64(n)

	var sq float64
	for _, iv := range intervals {
		sq += (iv - m) * (iv - m)
	}
	sd := math.Sqrt(sq / float64(n))

	return time.Duration(m), time.Duration(sd), true
}
