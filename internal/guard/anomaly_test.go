package guard

import (
	"context"
	"testing"
	"time"
)

func testDetector(clk *fakeClock) *AnomalyDetector {
	return NewAnomalyDetector(AnomalyOpts{
		Window:             10 * time.Second,
		MaxRequests:        50,
		RapidFireThreshold: 5,
		StdDevThreshold:    50 * time.Millisecond,
		IntervalMin:        50 * time.Millisecond,
		IntervalMax:        200 * time.Millisecond,
		WarnLimit:          3,
		BlockFor:           60 * time.Second,
	}, clk.BlockStore())
}

func TestAnomalyConstantIntervalEventuallyBlocked(t *testing.T) {
	clk := newFakeClock()
	det := testDetector(clk)
	ctx := context.Background()
	req := Request{ClientID: "bot"}

	var blocked bool
	for i := 0; i < 60 && !blocked; i++ {
		d := det.Evaluate(ctx, req, clk.Now())
		blocked = !d.Allowed
		if blocked {
			if d.Filter != FilterAnomaly {
				t.Fatalf("wrong filter: %q", d.Filter)
			}
			if d.RetryAfter != 60*time.Second {
				t.Fatalf("retry-after: got %s", d.RetryAfter)
			}
		}
		clk.Advance(100 * time.Millisecond) // dead-constant polling interval
	}
	if !blocked {
		t.Fatal("constant-interval client was never blocked")
	}

	// still blocked until the long cooldown elapses
	if d := det.Evaluate(ctx, req, clk.Now()); d.Allowed {
		t.Fatal("request allowed during anomaly cooldown")
	}
	clk.Advance(61 * time.Second)
	if d := det.Evaluate(ctx, req, clk.Now()); !d.Allowed {
		t.Fatal("request rejected after cooldown expiry")
	}
	if det.Warnings("bot") != 0 {
		t.Fatalf("warnings not reset after block: %d", det.Warnings("bot"))
	}
}

func TestAnomalyJitteredTrafficNeverBlocked(t *testing.T) {
	clk := newFakeClock()
	det := testDetector(clk)
	ctx := context.Background()
	req := Request{ClientID: "human"}

	// same average rate as the bot, irregular spacing
	gaps := []time.Duration{
		30 * time.Millisecond, 250 * time.Millisecond, 80 * time.Millisecond,
		310 * time.Millisecond, 20 * time.Millisecond, 150 * time.Millisecond,
	}
	for i := 0; i < 120; i++ {
		if d := det.Evaluate(ctx, req, clk.Now()); !d.Allowed {
			t.Fatalf("jittered client blocked on request %d: %+v", i, d)
		}
		clk.Advance(gaps[i%len(gaps)])
	}
}

func TestAnomalyLowVolumeTrafficIgnored(t *testing.T) {
	clk := newFakeClock()
	det := testDetector(clk)
	ctx := context.Background()
	req := Request{ClientID: "slow"}

	// constant interval but below the rapid-fire threshold per window
	for i := 0; i < 40; i++ {
		if d := det.Evaluate(ctx, req, clk.Now()); !d.Allowed {
			t.Fatalf("low-volume client blocked on request %d", i)
		}
		clk.Advance(3 * time.Second)
	}
}

func TestIntervalStats(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(200 * time.Millisecond),
		base.Add(300 * time.Millisecond),
	}
	mean, stddev, ok := intervalStats(ts)
	if !ok {
		t.Fatal("expected stats")
	}
	if mean != 100*time.Millisecond {
		t.Fatalf("mean: got %s", mean)
	}
	if stddev != 0 {
		t.Fatalf("stddev of constant intervals: got %s", stddev)
	}

	if _, _, ok := intervalStats(ts[:2]); ok {
		t.Fatal("two samples should not produce stats")
	}
}
