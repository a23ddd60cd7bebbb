package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leadcrm/leadgate/internal/dispatcher"
	"github.com/leadcrm/leadgate/internal/model"
)

type fakeDeliveries struct {
	mu        sync.Mutex
	retryable []model.DeliveryAttempt
	inserted  []model.DeliveryAttempt
}

func (f *fakeDeliveries) InsertBatch(_ context.Context, _ *sqlx.Tx, attempts []model.DeliveryAttempt) error {
	f.mu.Lock()
	f.inserted = append(f.inserted, attempts...)
	f.mu.Unlock()
	return nil
}

func (f *fakeDeliveries) FetchRetryable(_ context.Context, maxAttempts int, _ time.Duration, _ int) ([]model.DeliveryAttempt, error) {
	var out []model.DeliveryAttempt
	for _, a := range f.retryable {
		if a.Attempt < maxAttempts {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSubs struct {
	byID map[string]*model.Subscription
}

func (f *fakeSubs) ListActive(_ context.Context, _ int64, _ string) ([]model.Subscription, error) {
	return nil, nil
}

func (f *fakeSubs) ListByOrganization(_ context.Context, _ int64) ([]model.Subscription, error) {
	return nil, nil
}

func (f *fakeSubs) GetByID(_ context.Context, id string) (*model.Subscription, error) {
	return f.byID[id], nil
}

func failedAttempt(subID string, attempt int) model.DeliveryAttempt {
	return model.DeliveryAttempt{
		ID:             "at-" + subID,
		SubscriptionID: subID,
		OrganizationID: 3,
		EventID:        "ev-1",
		Event:          model.EventLeadCreated,
		Payload:        []byte(`{"event":"lead.created","data":{"lead_id":1},"timestamp":"2025-06-01T12:00:00Z","webhookId":"at-old"}`),
		Attempt:        attempt,
		Success:        false,
	}
}

func TestRetrySweepRedelivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sub := &model.Subscription{
		ID: "sub-1", OrganizationID: 3, URL: srv.URL, Secret: "s",
		Events: model.EventSet{model.EventLeadCreated}, Enabled: true,
	}
	dels := &fakeDeliveries{retryable: []model.DeliveryAttempt{failedAttempt("sub-1", 1)}}
	subs := &fakeSubs{byID: map[string]*model.Subscription{"sub-1": sub}}

	w := NewRetry(dels, subs, dispatcher.New(subs, 2*time.Second))
	w.sweepOnce(context.Background())

	if len(dels.inserted) != 1 {
		t.Fatalf("expected 1 new attempt, got %d", len(dels.inserted))
	}
	a := dels.inserted[0]
	if a.Attempt != 2 {
		t.Fatalf("attempt number: got %d", a.Attempt)
	}
	if !a.Success {
		t.Fatalf("expected successful redelivery: %+v", a)
	}
	if a.OrganizationID != 3 || a.SubscriptionID != "sub-1" || a.EventID != "ev-1" {
		t.Fatalf("retry attempt scoping: %+v", a)
	}
	if a.ID == "at-sub-1" {
		t.Fatal("retry must append a new attempt, not reuse the old id")
	}
}

func TestRetrySkipsDeletedAndDisabledSubscriptions(t *testing.T) {
	dels := &fakeDeliveries{retryable: []model.DeliveryAttempt{
		failedAttempt("gone", 1),
		failedAttempt("off", 1),
	}}
	subs := &fakeSubs{byID: map[string]*model.Subscription{
		"off": {ID: "off", OrganizationID: 3, URL: "http://127.0.0.1:1",
			Events: model.EventSet{model.EventLeadCreated}, Enabled: false},
	}}

	w := NewRetry(dels, subs, dispatcher.New(subs, time.Second))
	w.sweepOnce(context.Background())

	if len(dels.inserted) != 0 {
		t.Fatalf("deleted/disabled subscriptions must not be retried: %+v", dels.inserted)
	}
}

func TestRetryRespectsAttemptCap(t *testing.T) {
	dels := &fakeDeliveries{retryable: []model.DeliveryAttempt{failedAttempt("sub-1", 3)}}
	subs := &fakeSubs{byID: map[string]*model.Subscription{
		"sub-1": {ID: "sub-1", OrganizationID: 3, URL: "http://127.0.0.1:1",
			Events: model.EventSet{model.EventLeadCreated}, Enabled: true},
	}}

	w := NewRetry(dels, subs, dispatcher.New(subs, time.Second))
	w.MaxAttempts = 3
	w.sweepOnce(context.Background())

	if len(dels.inserted) != 0 {
		t.Fatalf("attempt at the cap must not be retried: %+v", dels.inserted)
	}
}
