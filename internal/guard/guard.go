// Package guard implements the request-protection filters that sit in front
// of the API surface: an emergency throttle, a machine-pattern anomaly
// detector, and a per-endpoint circuit breaker, composed into an ordered
// pipeline. All state is in-memory and per-process unless a shared BlockStore
// is plugged in; see BlockStore.
package guard

import (
	"context"
	"time"
)

// Request is the slice of an inbound request the filters care about. The
// identity fields come from the surrounding web framework's extractor.
type Request struct {
	ClientID string // authenticated org id, or client IP as fallback
	Path     string // normalized endpoint key, e.g. "POST /v1/events"

	// MaxRPS overrides the throttle's default per-client cap when > 0
	// (per-organization setting).
	MaxRPS int
}

// Decision is the outcome of one filter for one request.
type Decision struct {
	Allowed    bool
	Filter     string        // which filter rejected
	Reason     string        // human-readable message
	RetryAfter time.Duration // advertised cooldown, 0 when allowed
}

func Allow() Decision { return Decision{Allowed: true} }

func Reject(filter, reason string, retryAfter time.Duration) Decision {
	return Decision{Filter: filter, Reason: reason, RetryAfter: retryAfter}
}

// Filter is one protection stage. Evaluate must be safe for concurrent use.
type Filter interface {
	Name() string
	Evaluate(ctx context.Context, req Request, now time.Time) Decision
}

// Pipeline runs filters in fixed order; the first rejection short-circuits.
type Pipeline struct {
	filters []Filter
}

func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

func (p *Pipeline) Evaluate(ctx context.Context, req Request, now time.Time) Decision {
	for _, f := range p.filters {
		if d := f.Evaluate(ctx, req, now); !d.Allowed {
			return d
		}
	}
	return Allow()
}
