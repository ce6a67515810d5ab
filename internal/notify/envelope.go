package notify

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
	EventDeleted EventType = "DELETED"
)

// Envelope is the ephemeral change notification broadcast to websocket
// clients. The id and payload keys are derived from the entity tag, so a
// funko envelope serializes as {entity, type, funkoId, funko, timestamp}.
// Payload is nil on deletes and serializes as an explicit null.
type Envelope struct {
	Entity    string
	Type      EventType
	ID        interface{}
	Payload   interface{}
	Timestamp time.Time
}

func NewEnvelope(entity string, typ EventType, id, payload interface{}) Envelope {
	return Envelope{
		Entity:    entity,
		Type:      typ,
		ID:        id,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"entity":        e.Entity,
		"type":          string(e.Type),
		e.Entity + "Id": e.ID,
		e.Entity:        e.Payload,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339),
	}
	return json.Marshal(m)
}
