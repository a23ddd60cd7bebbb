package worker

import (
	"context"
	"log"
	"time"

	"github.com/leadcrm/leadgate/internal/kafka"
	"github.com/leadcrm/leadgate/internal/repository"
)

// Relay polls the transactional outbox and publishes pending envelopes to
// Kafka. Rows are marked published only after the broker acks, so a crash
// republishes rather than drops (the dispatch side is at-least-once anyway).
type Relay struct {
	Outbox   repository.OutboxRepository
	Producer *kafka.Producer

	PollInterval time.Duration
	BatchLimit   int
}

func NewRelay(outbox repository.OutboxRepository, producer *kafka.Producer) *Relay {
	return &Relay{
		Outbox:       outbox,
		Producer:     producer,
		PollInterval: time.Second,
		BatchLimit:   100,
	}
}

// Run polls until ctx is cancelled.
func (w *Relay) Run(ctx context.Context) error {
	if w.PollInterval <= 0 {
		w.PollInterval = time.Second
	}
	if w.BatchLimit <= 0 {
		w.BatchLimit = 100
	}

	tick := time.NewTicker(w.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			w.relayOnce(ctx)
		}
	}
}

func (w *Relay) relayOnce(ctx context.Context) {
	pending, err := w.Outbox.FetchUnpublished(ctx, w.BatchLimit)
	if err != nil {
		log.Printf("[relay] fetch outbox err: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	published := make([]int64, 0, len(pending))
	for _, ev := range pending {
		if err := w.Producer.Publish(ctx, []byte(ev.AggregateID), ev.Payload); err != nil {
			log.Printf("[relay] publish outbox id=%d err: %v", ev.ID, err)
			break // keep ordering: stop the batch on first failure
		}
		published = append(published, ev.ID)
	}

	if err := w.Outbox.MarkPublished(ctx, published); err != nil {
		log.Printf("[relay] mark published err: %v", err)
	}
}
