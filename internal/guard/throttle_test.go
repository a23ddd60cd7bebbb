package guard

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives both the filter's now argument and the memory block
// store's internal clock.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) BlockStore() *MemoryBlockStore {
	s := NewMemoryBlockStore()
	s.now = c.Now
	return s
}

func TestThrottleCapAndCooldown(t *testing.T) {
	clk := newFakeClock()
	th := NewThrottle(5, time.Second, 10*time.Second, clk.BlockStore())
	ctx := context.Background()
	req := Request{ClientID: "org-1", Path: "POST /v1/events"}

	for i := 0; i < 5; i++ {
		if d := th.Evaluate(ctx, req, clk.Now()); !d.Allowed {
			t.Fatalf("request %d under the cap rejected: %+v", i, d)
		}
		clk.Advance(10 * time.Millisecond)
	}

	d := th.Evaluate(ctx, req, clk.Now())
	if d.Allowed {
		t.Fatal("request above the cap allowed")
	}
	if d.Filter != FilterThrottle {
		t.Fatalf("wrong filter: %q", d.Filter)
	}
	if d.RetryAfter != 10*time.Second {
		t.Fatalf("retry-after: got %s", d.RetryAfter)
	}
}

func TestThrottleBlockedRequestsDoNotExtendCooldown(t *testing.T) {
	clk := newFakeClock()
	th := NewThrottle(2, time.Second, 10*time.Second, clk.BlockStore())
	ctx := context.Background()
	req := Request{ClientID: "org-1", Path: "GET /v1/leads"}

	th.Evaluate(ctx, req, clk.Now())
	th.Evaluate(ctx, req, clk.Now())
	if d := th.Evaluate(ctx, req, clk.Now()); d.Allowed {
		t.Fatal("third request should trip the throttle")
	}

	// hammer while blocked: cooldown must stay fixed-length
	for i := 0; i < 20; i++ {
		clk.Advance(400 * time.Millisecond)
		if d := th.Evaluate(ctx, req, clk.Now()); d.Allowed && clk.Now().Sub(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) < 10*time.Second {
			t.Fatalf("request allowed %s into a 10s cooldown", clk.Now().Sub(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
		}
	}

	// 8s hammered; advance past the original expiry
	clk.Advance(3 * time.Second)
	if d := th.Evaluate(ctx, req, clk.Now()); !d.Allowed {
		t.Fatalf("request rejected after cooldown expiry: %+v", d)
	}
}

func TestThrottleKeysArePerClientAndEndpoint(t *testing.T) {
	clk := newFakeClock()
	th := NewThrottle(2, time.Second, 10*time.Second, clk.BlockStore())
	ctx := context.Background()

	a := Request{ClientID: "org-1", Path: "POST /v1/events"}
	b := Request{ClientID: "org-2", Path: "POST /v1/events"}
	other := Request{ClientID: "org-1", Path: "GET /v1/deliveries"}

	th.Evaluate(ctx, a, clk.Now())
	th.Evaluate(ctx, a, clk.Now())
	if d := th.Evaluate(ctx, a, clk.Now()); d.Allowed {
		t.Fatal("org-1 should be throttled")
	}
	if d := th.Evaluate(ctx, b, clk.Now()); !d.Allowed {
		t.Fatal("org-2 must not inherit org-1's block")
	}
	if d := th.Evaluate(ctx, other, clk.Now()); !d.Allowed {
		t.Fatal("same client, different endpoint must not be blocked")
	}
}

func TestThrottlePerOrgOverride(t *testing.T) {
	clk := newFakeClock()
	th := NewThrottle(50, time.Second, 10*time.Second, clk.BlockStore())
	ctx := context.Background()
	req := Request{ClientID: "org-1", Path: "POST /v1/events", MaxRPS: 1}

	if d := th.Evaluate(ctx, req, clk.Now()); !d.Allowed {
		t.Fatal("first request rejected")
	}
	if d := th.Evaluate(ctx, req, clk.Now()); d.Allowed {
		t.Fatal("override cap of 1 not applied")
	}
}
