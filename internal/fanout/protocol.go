package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charleschow/market-matcher/internal/events"
)

// Envelope is the wire format for events sent over the fanout WebSocket.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Sport     events.Sport    `json:"sport,omitempty"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalEvent serializes an Event into a JSON-encoded Envelope.
func MarshalEvent(evt events.Event) ([]byte, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		Type:      string(evt.Type),
		ID:        evt.ID,
		Sport:     evt.Sport,
		Timestamp: evt.Timestamp,
		Payload:   payload,
	}
	return json.Marshal(env)
}

// UnmarshalEvent deserializes a JSON Envelope back into a typed Event.
func UnmarshalEvent(data []byte) (events.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	evt := events.Event{
		ID:        env.ID,
		Type:      events.EventType(env.Type),
		Sport:     env.Sport,
		Timestamp: env.Timestamp,
	}

	var err error
	switch evt.Type {
	case events.EventIndexRebuilt:
		evt.Payload, err = decode[events.IndexRebuiltEvent](env.Payload)
	case events.EventIndexRebuildFailed:
		evt.Payload, err = decode[events.IndexRebuildFailedEvent](env.Payload)
	case events.EventIndexInvalidated:
		evt.Payload, err = decode[events.IndexInvalidatedEvent](env.Payload)
	case events.EventAliasesReloaded:
		evt.Payload, err = decode[events.AliasesReloadedEvent](env.Payload)
	case events.EventMatchResolved:
		evt.Payload, err = decode[events.MatchResolvedEvent](env.Payload)
	default:
		return evt, fmt.Errorf("unknown event type: %s", env.Type)
	}
	if err != nil {
		return evt, fmt.Errorf("unmarshal %s: %w", evt.Type, err)
	}
	return evt, nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
