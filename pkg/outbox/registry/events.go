// Package registry knows which outbox event types exist, where each is
// published and how its payload decodes.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every
// attempt and belongs in the dead letter table.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// on describes event type t as carrying payload P.
func on[P any](t enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      t,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(P) },
	}
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.AgreementTopic
	if topic == "" {
		return nil, errors.New("agreement topic is required")
	}
	agreement, link := enums.AggregateAgreement, enums.AggregateSignatureLink

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, d := range []EventDescriptor{
		on[payloads.AgreementCreatedEvent](enums.EventAgreementCreated, agreement, topic),
		on[payloads.AgreementUpdatedEvent](enums.EventAgreementUpdated, agreement, topic),
		on[payloads.AgreementDeletedEvent](enums.EventAgreementDeleted, agreement, topic),
		on[payloads.AgreementSentEvent](enums.EventAgreementSent, agreement, topic),
		on[payloads.AgreementSignedEvent](enums.EventAgreementSigned, agreement, topic),
		on[payloads.SignatureReplacedEvent](enums.EventSignatureReplaced, agreement, topic),
		on[payloads.LinkExpiredEvent](enums.EventLinksExpired, link, topic),
	} {
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Resolve checks a row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("%s belongs to %s aggregates, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate id", event.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("%s envelope has no data", event.EventType)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
