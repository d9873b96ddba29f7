package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable body stored in outbox_events.payload and
// published verbatim as the Pub/Sub message data.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     string          `json:"source"`
	Subject    string          `json:"subject,omitempty"`
	Data       json.RawMessage `json:"data"`
}
