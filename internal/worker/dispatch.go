package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/leadcrm/leadgate/internal/dispatcher"
	"github.com/leadcrm/leadgate/internal/kafka"
	"github.com/leadcrm/leadgate/internal/metrics"
	"github.com/leadcrm/leadgate/internal/model"
	"github.com/leadcrm/leadgate/internal/repository"
)

// Dispatch:
// - fetches event envelopes from Kafka,
// - fans them out to webhook subscribers via the dispatcher,
// - batches delivery-log inserts (size/time flush).
//
// Offsets are committed after processing: at-least-once, a crash between
// delivery and commit redelivers the event. Receivers de-duplicate on the
// webhookId carried in the body.
type Dispatch struct {
	// Dependencies
	Consumer   *kafka.Consumer
	Dispatcher *dispatcher.Dispatcher
	Deliveries repository.DeliveriesRepository

	// Behavior
	Workers   int           // goroutines processing events
	BatchSize int           // max buffered attempts per flush
	BatchWait time.Duration // max time to wait before flush
}

// NewDispatch builds the dispatch worker with sane defaults.
func NewDispatch(consumer *kafka.Consumer, disp *dispatcher.Dispatcher, deliveries repository.DeliveriesRepository) *Dispatch {
	return &Dispatch{
		Consumer:   consumer,
		Dispatcher: disp,
		Deliveries: deliveries,
		Workers:    32,
		BatchSize:  200,
		BatchWait:  300 * time.Millisecond,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Dispatch) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 32
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 200
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 300 * time.Millisecond
	}

	// Channel for delivery outcomes → batch writer
	attempts := make(chan model.DeliveryAttempt, w.BatchSize*2)
	defer close(attempts)

	go w.runBatchWriter(ctx, attempts)

	// Fetch loop → fan-out to processors
	msgCh := make(chan kafka.Message, w.Workers*2)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := w.Consumer.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("[dispatch] kafka fetch err: %v", err)
					time.Sleep(200 * time.Millisecond)
					continue
				}
				msgCh <- m
			}
		}
	}()

	for i := 0; i < w.Workers; i++ {
		go w.runProcessor(ctx, msgCh, attempts)
	}

	<-ctx.Done()
	return nil
}

func (w *Dispatch) runProcessor(ctx context.Context, in <-chan kafka.Message, out chan<- model.DeliveryAttempt) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m, out)
		}
	}
}

func (w *Dispatch) processOne(ctx context.Context, m kafka.Message, out chan<- model.DeliveryAttempt) {
	var ev model.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
		_ = w.Consumer.Commit(ctx, m) // poison → commit, skip
		if err != nil {
			log.Printf("[dispatch] bad envelope json: %v", err)
		} else {
			log.Printf("[dispatch] envelope missing id")
		}
		return
	}

	attempts, err := w.Dispatcher.Trigger(ctx, ev)
	if err != nil {
		// registry unavailable: leave the offset uncommitted and retry later
		log.Printf("[dispatch] trigger event=%s org=%d err: %v", ev.Name, ev.OrganizationID, err)
		return
	}

	for _, a := range attempts {
		outcome := "failure"
		if a.Success {
			outcome = "success"
		}
		metrics.DeliveriesTotal.WithLabelValues(outcome, a.Event).Inc()
		metrics.DeliveryDuration.Observe(float64(a.DurationMs) / 1000)
		out <- a
	}

	if err := w.Consumer.Commit(ctx, m); err != nil {
		log.Printf("[dispatch] commit err: %v", err)
	}
}

// runBatchWriter does size/time-based flush of delivery-log inserts.
func (w *Dispatch) runBatchWriter(ctx context.Context, in <-chan model.DeliveryAttempt) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	buf := make([]model.DeliveryAttempt, 0, w.BatchSize)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := w.Deliveries.InsertBatch(ctx, nil, buf); err != nil {
			log.Printf("[dispatch] delivery log insert err: %v", err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case a, ok := <-in:
			if !ok {
				flush()
				return
			}
			buf = append(buf, a)
			if len(buf) >= w.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}
