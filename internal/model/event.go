package model

import (
	"encoding/json"
	"time"
)

// Known domain event names raised by the CRUD layer after committed writes.
const (
	EventLeadCreated      = "lead.created"
	EventLeadUpdated      = "lead.updated"
	EventLeadStageChanged = "lead.stage_changed"
	EventLeadAssigned     = "lead.assigned"
	EventLeadReceived     = "lead.received"
	EventLeadDeleted      = "lead.deleted"
)

var knownEvents = map[string]struct{}{
	EventLeadCreated:      {},
	EventLeadUpdated:      {},
	EventLeadStageChanged: {},
	EventLeadAssigned:     {},
	EventLeadReceived:     {},
	EventLeadDeleted:      {},
}

// ValidEvent reports whether name is a recognized domain event.
func ValidEvent(name string) bool {
	_, ok := knownEvents[name]
	return ok
}

// Event is one occurrence of a domain event, scoped to a single organization.
// Its JSON form is the envelope written to the outbox and published to Kafka.
type Event struct {
	ID             string          `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	Name           string          `json:"event"`
	Payload        json.RawMessage `json:"payload"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
