// Package dispatcher delivers domain events to webhook subscribers. Each
// subscription is delivered to independently: one slow or broken receiver
// never delays or fails delivery to its siblings, and an outcome is recorded
// for every subscription regardless of how the others fared.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/leadcrm/leadgate/internal/model"
	"github.com/leadcrm/leadgate/internal/util"
)

const (
	HeaderSignature = "X-Leadgate-Signature"
	HeaderEvent     = "X-Leadgate-Event"
	HeaderDelivery  = "X-Leadgate-Delivery"
)

// SubscriptionSource is the read-only registry view owned by the settings
// layer: enabled subscriptions of one organization matching one event name.
type SubscriptionSource interface {
	ListActive(ctx context.Context, organizationID int64, event string) ([]model.Subscription, error)
}

type Dispatcher struct {
	subs    SubscriptionSource
	client  *http.Client
	timeout time.Duration
}

func New(subs SubscriptionSource, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		subs:    subs,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// wireBody is the JSON body POSTed to subscribers. The signature covers these
// exact serialized bytes.
type wireBody struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
	WebhookID string          `json:"webhookId"`
}

// Trigger resolves the matching subscriptions for the event's organization
// and delivers to each concurrently. It returns one DeliveryAttempt per
// subscription; no matching subscriptions is an empty slice, not an error.
func (d *Dispatcher) Trigger(ctx context.Context, ev model.Event) ([]model.DeliveryAttempt, error) {
	subs, err := d.subs.ListActive(ctx, ev.OrganizationID, ev.Name)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return []model.DeliveryAttempt{}, nil
	}

	attempts := make([]model.DeliveryAttempt, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub model.Subscription) {
			defer wg.Done()
			attempts[i] = d.Deliver(ctx, sub, ev, 1)
		}(i, sub)
	}
	wg.Wait()

	return attempts, nil
}

// Deliver performs a single POST to one subscription and returns the recorded
// outcome. attempt numbers deliveries for the same (subscription, event) pair
// starting at 1; retries pass higher numbers.
func (d *Dispatcher) Deliver(ctx context.Context, sub model.Subscription, ev model.Event, attempt int) model.DeliveryAttempt {
	da := model.DeliveryAttempt{
		ID:             util.New(),
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		EventID:        ev.ID,
		Event:          ev.Name,
		Attempt:        attempt,
		CreatedAt:      time.Now().UTC(),
	}

	body, err := json.Marshal(wireBody{
		Event:     ev.Name,
		Data:      ev.Payload,
		Timestamp: ev.OccurredAt.UTC().Format(time.RFC3339),
		WebhookID: da.ID,
	})
	if err != nil {
		da.Error = "marshal payload: " + err.Error()
		return da
	}
	da.Payload = body

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		da.Error = "build request: " + err.Error()
		return da
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, ev.Name)
	req.Header.Set(HeaderDelivery, da.ID)
	req.Header.Set(HeaderSignature, Sign(sub.Secret, body))

	start := time.Now()
	res, err := d.client.Do(req)
	da.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		// timeout or network failure: no status code to record
		da.Error = err.Error()
		return da
	}
	defer res.Body.Close()

	code := res.StatusCode
	da.StatusCode = &code
	da.Success = code/100 == 2

	return da
}
