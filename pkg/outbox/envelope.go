package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actor kinds recorded on the envelope.
const (
	ActorOwner  = "owner"
	ActorClient = "client"
	ActorSystem = "system"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	Kind     string     `json:"kind"`
	UserID   *uuid.UUID `json:"userId,omitempty"`
	ClientID *uuid.UUID `json:"clientId,omitempty"`
}

func OwnerActor(userID uuid.UUID) *ActorRef {
	return &ActorRef{Kind: ActorOwner, UserID: &userID}
}

func ClientActor(clientID uuid.UUID) *ActorRef {
	return &ActorRef{Kind: ActorClient, ClientID: &clientID}
}

func SystemActor() *ActorRef {
	return &ActorRef{Kind: ActorSystem}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
