package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/leadcrm/leadgate/internal/dispatcher"
	"github.com/leadcrm/leadgate/internal/metrics"
	"github.com/leadcrm/leadgate/internal/model"
	"github.com/leadcrm/leadgate/internal/repository"
)

// Retry sweeps the delivery log for recent failures and re-attempts them off
// the hot path. Each sweep picks failed deliveries that are the latest
// attempt for their (subscription, event) pair, below the attempt cap, and
// past their exponential backoff delay. A retry appends a fresh attempt row;
// nothing is mutated.
type Retry struct {
	Deliveries    repository.DeliveriesRepository
	Subscriptions repository.SubscriptionsRepository
	Dispatcher    *dispatcher.Dispatcher

	MaxAttempts int
	Interval    time.Duration
	BackoffBase time.Duration
	BatchLimit  int
}

func NewRetry(
	deliveries repository.DeliveriesRepository,
	subs repository.SubscriptionsRepository,
	disp *dispatcher.Dispatcher,
) *Retry {
	return &Retry{
		Deliveries:    deliveries,
		Subscriptions: subs,
		Dispatcher:    disp,
		MaxAttempts:   3,
		Interval:      30 * time.Second,
		BackoffBase:   time.Minute,
		BatchLimit:    50,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (w *Retry) Run(ctx context.Context) error {
	if w.MaxAttempts <= 0 {
		w.MaxAttempts = 3
	}
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}
	if w.BackoffBase <= 0 {
		w.BackoffBase = time.Minute
	}
	if w.BatchLimit <= 0 {
		w.BatchLimit = 50
	}

	tick := time.NewTicker(w.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Retry) sweepOnce(ctx context.Context) {
	failed, err := w.Deliveries.FetchRetryable(ctx, w.MaxAttempts, w.BackoffBase, w.BatchLimit)
	if err != nil {
		log.Printf("[retry] fetch retryable err: %v", err)
		return
	}

	for _, prev := range failed {
		sub, err := w.Subscriptions.GetByID(ctx, prev.SubscriptionID)
		if err != nil {
			log.Printf("[retry] load subscription %s err: %v", prev.SubscriptionID, err)
			continue
		}
		if sub == nil || !sub.Enabled || !sub.Events.Contains(prev.Event) {
			// deleted, disabled, or unsubscribed since the failure: drop it
			continue
		}

		ev, ok := eventFromAttempt(prev)
		if !ok {
			log.Printf("[retry] attempt %s has unparseable payload, dropping", prev.ID)
			continue
		}

		a := w.Dispatcher.Deliver(ctx, *sub, ev, prev.Attempt+1)

		outcome := "failure"
		if a.Success {
			outcome = "success"
		}
		metrics.DeliveriesTotal.WithLabelValues(outcome, a.Event).Inc()
		metrics.DeliveryDuration.Observe(float64(a.DurationMs) / 1000)

		if err := w.Deliveries.InsertBatch(ctx, nil, []model.DeliveryAttempt{a}); err != nil {
			log.Printf("[retry] record attempt err: %v", err)
		}
	}
}

// eventFromAttempt rebuilds the domain event from the payload snapshot of a
// failed attempt, so the retried POST carries the same data and original
// timestamp (only the webhookId differs per attempt).
func eventFromAttempt(a model.DeliveryAttempt) (model.Event, bool) {
	var body struct {
		Event     string          `json:"event"`
		Data      json.RawMessage `json:"data"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(a.Payload, &body); err != nil {
		return model.Event{}, false
	}
	return model.Event{
		ID:             a.EventID,
		OrganizationID: a.OrganizationID,
		Name:           a.Event,
		Payload:        body.Data,
		OccurredAt:     body.Timestamp,
	}, true
}
