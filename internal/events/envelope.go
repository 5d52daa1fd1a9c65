package events

import (
	"encoding/json"
	"time"
)

type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	// TempID echoes the sender's client-generated correlation id so the
	// sending client can reconcile its optimistic entry without a re-fetch.
	TempID     string          `json:"temp_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps the envelope with the current time.
func NewEnvelope(eventType, aggregateType, aggregateID, tempID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		TempID:        tempID,
		OccurredAt:    time.Now(),
		Payload:       raw,
	}, nil
}
