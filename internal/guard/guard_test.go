package guard

import (
	"context"
	"testing"
	"time"
)

type stubFilter struct {
	name     string
	decision Decision
	calls    int
}

func (s *stubFilter) Name() string { return s.name }

func (s *stubFilter) Evaluate(_ context.Context, _ Request, _ time.Time) Decision {
	s.calls++
	return s.decision
}

func TestPipelineFirstRejectionShortCircuits(t *testing.T) {
	first := &stubFilter{name: "first", decision: Reject("first", "nope", time.Second)}
	second := &stubFilter{name: "second", decision: Allow()}
	p := NewPipeline(first, second)

	d := p.Evaluate(context.Background(), Request{ClientID: "c"}, time.Now())
	if d.Allowed {
		t.Fatal("pipeline allowed a rejected request")
	}
	if d.Filter != "first" {
		t.Fatalf("wrong rejecting filter: %q", d.Filter)
	}
	if second.calls != 0 {
		t.Fatal("later filter ran after a rejection")
	}
}

func TestPipelineAllAllow(t *testing.T) {
	a := &stubFilter{name: "a", decision: Allow()}
	b := &stubFilter{name: "b", decision: Allow()}
	p := NewPipeline(a, b)

	d := p.Evaluate(context.Background(), Request{ClientID: "c"}, time.Now())
	if !d.Allowed {
		t.Fatalf("pipeline rejected clean request: %+v", d)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("filters ran %d/%d times", a.calls, b.calls)
	}
}

func TestMemoryBlockStoreFixedCooldown(t *testing.T) {
	clk := newFakeClock()
	s := clk.BlockStore()
	ctx := context.Background()

	_ = s.Block(ctx, "k", 10*time.Second)
	clk.Advance(5 * time.Second)
	// re-blocking while active must not extend the original expiry
	_ = s.Block(ctx, "k", 10*time.Second)

	remain, blocked, _ := s.Blocked(ctx, "k")
	if !blocked || remain != 5*time.Second {
		t.Fatalf("blocked=%v remain=%s", blocked, remain)
	}

	clk.Advance(5 * time.Second)
	if _, blocked, _ := s.Blocked(ctx, "k"); blocked {
		t.Fatal("block survived its expiry")
	}
}
