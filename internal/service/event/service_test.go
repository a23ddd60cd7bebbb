package event

import (
	"context"
	"errors"
	"testing"
)

func TestEmitRejectsUnknownEvent(t *testing.T) {
	// validation runs before any storage access
	s := New(nil, nil, "webhook.events")

	_, err := s.Emit(context.Background(), 1, "lead.exploded", nil)
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("want ErrUnknownEvent, got %v", err)
	}
}
