package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Subscription is a tenant's registration of interest in one or more event
// names, targeting a URL. Created/edited by the settings layer; the
// dispatcher only ever reads it.
type Subscription struct {
	ID             string    `db:"id"`
	OrganizationID int64     `db:"organization_id"`
	Name           string    `db:"name"`
	URL            string    `db:"url"`
	Secret         string    `db:"secret"`
	Events         EventSet  `db:"events"`
	Enabled        bool      `db:"enabled"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// EventSet is the set of subscribed event names, stored as a JSON array column.
type EventSet []string

func (s EventSet) Contains(event string) bool {
	for _, e := range s {
		if e == event {
			return true
		}
	}
	return false
}

func (s EventSet) Value() (driver.Value, error) {
	return json.Marshal([]string(s))
}

func (s *EventSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]string)(s))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(s))
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("events: unsupported column type %T", src)
	}
}
