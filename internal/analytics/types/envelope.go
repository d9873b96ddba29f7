package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// Envelope is a published outbox event as the analytics worker sees it: the
// stored envelope merged with the Pub/Sub attributes set by the relay.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Subject       string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// TenantID parses Subject, which producers set to the tenant id.
func (e Envelope) TenantID() (uuid.UUID, bool) {
	id, err := uuid.Parse(e.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// DedupKey identifies the event for consumer idempotency. Event ids are
// unique per outbox row, the type prefix only keeps Redis keys readable.
func (e Envelope) DedupKey() string {
	return string(e.EventType) + ":" + e.EventID
}
