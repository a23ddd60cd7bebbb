package guard

import (
	"context"
	"fmt"
	"time"
)

const FilterThrottle = "throttle"

// Throttle is the emergency brake: a hard cap of MaxRequests per Window for
// each (client, endpoint) pair. A client that exceeds the cap is blocked for
// a fixed BlockFor cooldown; requests arriving while blocked are rejected
// without consuming a window slot and do not extend the cooldown.
type Throttle struct {
	MaxRequests int
	Window      time.Duration
	BlockFor    time.Duration

	counter *SlidingWindowCounter
	blocks  BlockStore
}

func NewThrottle(maxRequests int, window, blockFor time.Duration, blocks BlockStore) *Throttle {
	if maxRequests <= 0 {
		maxRequests = 50
	}
	if window <= 0 {
		window = time.Second
	}
	if blockFor <= 0 {
		blockFor = 10 * time.Second
	}
	return &Throttle{
		MaxRequests: maxRequests,
		Window:      window,
		BlockFor:    blockFor,
		counter:     NewSlidingWindowCounter(window),
		blocks:      blocks,
	}
}

func (t *Throttle) Name() string { return FilterThrottle }

func (t *Throttle) Evaluate(ctx context.Context, req Request, now time.Time) Decision {
	key := req.ClientID + "|" + req.Path

	remain, blocked, err := t.blocks.Blocked(ctx, key)
	if err != nil {
		// store unreachable: fail open, the filter is advisory
		return Allow()
	}
	if blocked {
		return Reject(FilterThrottle, "too many requests", remain)
	}

	max := t.MaxRequests
	if req.MaxRPS > 0 {
		max = req.MaxRPS
	}

	if t.counter.Record(key, now) > max {
		_ = t.blocks.Block(ctx, key, t.BlockFor)
		t.counter.Reset(key)
		return Reject(FilterThrottle, fmt.Sprintf("request rate above %d/%s", max, t.Window), t.BlockFor)
	}
	return Allow()
}

// Sweep drops window state for keys that went quiet.
func (t *Throttle) Sweep(now time.Time) { t.counter.Sweep(now) }
