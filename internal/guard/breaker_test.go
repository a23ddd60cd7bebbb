package guard

import (
	"context"
	"testing"
	"time"
)

func TestBreakerOpensOnWindowedFailures(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(3, 10*time.Second, 60*time.Second)

	for i := 0; i < 2; i++ {
		b.OnFailure(clk.Now())
		clk.Advance(time.Second)
	}
	if b.State() != StateClosed {
		t.Fatalf("state after 2 failures: %s", b.State())
	}

	b.OnFailure(clk.Now())
	if b.State() != StateOpen {
		t.Fatalf("state after threshold failures: %s", b.State())
	}

	ok, retryAfter := b.TryAcquire(clk.Now())
	if ok {
		t.Fatal("open breaker let a request through")
	}
	if retryAfter != 60*time.Second {
		t.Fatalf("retry-after: got %s", retryAfter)
	}
}

func TestBreakerFailuresOutsideWindowDoNotTrip(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(3, 10*time.Second, 60*time.Second)

	// spread failures wider than the monitoring window
	for i := 0; i < 6; i++ {
		b.OnFailure(clk.Now())
		clk.Advance(6 * time.Second)
	}
	if b.State() != StateClosed {
		t.Fatalf("slow failure trickle tripped the breaker: %s", b.State())
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(2, 10*time.Second, 60*time.Second)

	b.OnFailure(clk.Now())
	b.OnFailure(clk.Now())
	if b.State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	clk.Advance(60 * time.Second)

	ok, _ := b.TryAcquire(clk.Now())
	if !ok {
		t.Fatal("probe not allowed after recovery timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state during probe: %s", b.State())
	}

	// exactly one probe in flight
	if ok, _ := b.TryAcquire(clk.Now()); ok {
		t.Fatal("second concurrent probe allowed")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(2, 10*time.Second, 60*time.Second)

	b.OnFailure(clk.Now())
	b.OnFailure(clk.Now())
	clk.Advance(60 * time.Second)
	b.TryAcquire(clk.Now())
	b.OnSuccess()

	if b.State() != StateClosed {
		t.Fatalf("state after successful probe: %s", b.State())
	}
	// failure history cleared: one new failure must not re-open
	b.OnFailure(clk.Now())
	if b.State() != StateClosed {
		t.Fatal("cleared breaker re-opened on a single failure")
	}
}

func TestBreakerProbeFailureReopensAndResetsTimer(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(2, 10*time.Second, 60*time.Second)

	b.OnFailure(clk.Now())
	b.OnFailure(clk.Now())
	clk.Advance(60 * time.Second)
	b.TryAcquire(clk.Now())
	b.OnFailure(clk.Now())

	if b.State() != StateOpen {
		t.Fatalf("state after failed probe: %s", b.State())
	}
	// timer restarted: 30s later still rejecting
	clk.Advance(30 * time.Second)
	if ok, _ := b.TryAcquire(clk.Now()); ok {
		t.Fatal("request allowed before restarted recovery timeout elapsed")
	}
	clk.Advance(31 * time.Second)
	if ok, _ := b.TryAcquire(clk.Now()); !ok {
		t.Fatal("probe not allowed after restarted recovery timeout")
	}
}

func TestBreakerRegistryPerEndpoint(t *testing.T) {
	clk := newFakeClock()
	reg := NewBreakerRegistry(1, 10*time.Second, 60*time.Second)

	reg.GetOrCreate("POST /v1/events").OnFailure(clk.Now())

	f := &BreakerFilter{Registry: reg}
	ctx := context.Background()

	d := f.Evaluate(ctx, Request{ClientID: "x", Path: "POST /v1/events"}, clk.Now())
	if d.Allowed {
		t.Fatal("tripped endpoint should reject")
	}
	d = f.Evaluate(ctx, Request{ClientID: "x", Path: "GET /v1/deliveries"}, clk.Now())
	if !d.Allowed {
		t.Fatal("healthy endpoint rejected")
	}
	if reg.GetOrCreate("POST /v1/events") != reg.GetOrCreate("POST /v1/events") {
		t.Fatal("registry returned different breakers for the same key")
	}
}
