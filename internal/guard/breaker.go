package guard

import (
	"context"
	"sync"
	"time"
)

const FilterBreaker = "circuit_breaker"

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker protects one endpoint. Server-class handler failures inside
// the rolling window trip it OPEN; after the recovery timeout has elapsed
// since the last failure a single probe request is let through HALF_OPEN, and
// that probe's outcome alone decides the next state. Client-class failures
// (4xx) must never be reported to it.
type CircuitBreaker struct {
	mu            sync.Mutex
	st            State
	failures      []time.Time
	lastFailure   time.Time
	probeInFlight bool

	failThreshold int
	window        time.Duration
	recovery      time.Duration
}

func NewCircuitBreaker(failThreshold int, window, recovery time.Duration) *CircuitBreaker {
	if failThreshold <= 0 {
		failThreshold = 10
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	if recovery <= 0 {
		recovery = 60 * time.Second
	}
	return &CircuitBreaker{
		failThreshold: failThreshold,
		window:        window,
		recovery:      recovery,
	}
}

// TryAcquire decides whether a request may pass at time now. When the breaker
// is OPEN it returns false with the time left until a probe becomes possible.
func (b *CircuitBreaker) TryAcquire(now time.Time) (ok bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case StateClosed:
		return true, 0
	case StateOpen:
		readyAt := b.lastFailure.Add(b.recovery)
		if !now.Before(readyAt) {
			b.st = StateHalfOpen
			b.probeInFlight = true
			return true, 0
		}
		return false, readyAt.Sub(now)
	case StateHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true, 0
		}
		return false, time.Second
	default:
		return true, 0
	}
}

// OnSuccess reports a handler success for a request that passed TryAcquire.
func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	if b.st == StateHalfOpen {
		b.st = StateClosed
		b.failures = b.failures[:0]
	}
	b.probeInFlight = false
	b.mu.Unlock()
}

// OnFailure reports a server-class handler failure at time now.
func (b *CircuitBreaker) OnFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = now

	if b.st == StateHalfOpen {
		// failed probe: back to OPEN, recovery timer restarts
		b.st = StateOpen
		b.probeInFlight = false
		return
	}
	if b.st == StateOpen {
		return
	}

	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.failures) && !b.failures[i].After(cutoff) {
		i++
	}
	b.failures = append(b.failures[:0], b.failures[i:]...)
	b.failures = append(b.failures, now)

	if len(b.failures) >= b.failThreshold {
		b.st = StateOpen
	}
}

// State reports the current state (metrics / tests).
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

// BreakerRegistry holds one breaker per endpoint key, created lazily for
// dynamic paths. Breakers live for the process lifetime, bounded by endpoint
// cardinality.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker

	failThreshold int
	window        time.Duration
	recovery      time.Duration
}

func NewBreakerRegistry(failThreshold int, window, recovery time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:      make(map[string]*CircuitBreaker),
		failThreshold: failThreshold,
		window:        window,
		recovery:      recovery,
	}
}

func (r *BreakerRegistry) GetOrCreate(endpoint string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[endpoint]
	if !ok {
		b = NewCircuitBreaker(r.failThreshold, r.window, r.recovery)
		r.breakers[endpoint] = b
	}
	return b
}

// BreakerFilter adapts the registry into a pipeline Filter, queried per
// endpoint and independent of client identity.
type BreakerFilter struct {
	Registry *BreakerRegistry
}

func (f *BreakerFilter) Name() string { return FilterBreaker }

func (f *BreakerFilter) Evaluate(_ context.Context, req Request, now time.Time) Decision {
	ok, retryAfter := f.Registry.GetOrCreate(req.Path).TryAcquire(now)
	if !ok {
		return Reject(FilterBreaker, "service temporarily unavailable", retryAfter)
	}
	return Allow()
}
