package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType doubles as the routing key of the published message.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventBudgetCreated      EventType = "budget.created"
	EventBudgetUpdated      EventType = "budget.updated"
	EventBudgetDeleted      EventType = "budget.deleted"
	EventImportCommitted    EventType = "import.committed"
)

// Event is a lightweight change notification. Consumers fetch the entity
// themselves if they need more than its id.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	EntityID  int64     `json:"entity_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event about one entity.
func NewEvent(eventType EventType, userID string, entityID int64) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// NewImportCommitted reports how many transactions an import created.
func NewImportCommitted(userID string, created int) *Event {
	e := NewEvent(EventImportCommitted, userID, 0)
	e.Count = created
	return e
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
