// Package event implements the domain-event emitter consumed by the CRUD
// layer after a committed write. Emission is a single outbox insert: the slow
// network fan-out to subscribers happens later, on the worker side of the
// Kafka boundary, so the emitting request never waits on subscriber count or
// subscriber latency.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leadcrm/leadgate/internal/model"
	"github.com/leadcrm/leadgate/internal/repository"
	"github.com/leadcrm/leadgate/internal/util"
)

var ErrUnknownEvent = errors.New("unknown event name")

// Emitter is the interface handed to the CRUD layer.
type Emitter interface {
	Emit(ctx context.Context, organizationID int64, name string, payload json.RawMessage) (string, error)
}

type Service struct {
	db     *sqlx.DB
	outbox repository.OutboxRepository
	topic  string
}

func New(db *sqlx.DB, outboxRepo repository.OutboxRepository, topic string) *Service {
	return &Service{
		db:     db,
		outbox: outboxRepo,
		topic:  topic,
	}
}

// Emit validates the event name, assigns a ULID, and writes the envelope to
// the outbox in one transaction. Returns the generated event ID.
func (s *Service) Emit(ctx context.Context, organizationID int64, name string, payload json.RawMessage) (string, error) {
	if !model.ValidEvent(name) {
		return "", ErrUnknownEvent
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	ev := model.Event{
		ID:             util.New(),
		OrganizationID: organizationID,
		Name:           name,
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.outbox.Insert(ctx, tx, "lead", ev.ID, s.topic, body); err != nil {
		return "", fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return ev.ID, nil
}
