package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// envelopeVersion is bumped when the envelope shape, not a payload, changes.
const envelopeVersion = 1

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID       uuid.UUID  `json:"userId"`
	GasStationID *uuid.UUID `json:"gasStationId,omitempty"`
	Role         string     `json:"role,omitempty"`
}

// PayloadEnvelope is what subscribers receive. EventID equals the outbox row
// id, so a requeued or redelivered event keeps its identity for dedupe.
// GasStationID lets subscribers route without decoding Data.
type PayloadEnvelope struct {
	Version      int             `json:"version"`
	EventID      string          `json:"eventId"`
	GasStationID uuid.UUID       `json:"gasStationId"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Actor        *ActorRef       `json:"actor,omitempty"`
	Data         json.RawMessage `json:"data"`
}
