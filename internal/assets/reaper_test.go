package assets

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage/storagetest"
)

type stubGuard struct {
	done     map[uuid.UUID]bool
	leased   map[uuid.UUID]bool
	err      error
	released []uuid.UUID
}

func (g *stubGuard) Claim(_ context.Context, _ string, eventID uuid.UUID) (idempotency.Outcome, string, error) {
	if g.err != nil {
		return 0, "", g.err
	}
	if g.done == nil {
		g.done, g.leased = map[uuid.UUID]bool{}, map[uuid.UUID]bool{}
	}
	switch {
	case g.done[eventID]:
		return idempotency.AlreadyProcessed, "", nil
	case g.leased[eventID]:
		return idempotency.InFlight, "", nil
	}
	g.leased[eventID] = true
	return idempotency.Claimed, "lease:" + eventID.String(), nil
}

func (g *stubGuard) Complete(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(g.leased, eventID)
	g.done[eventID] = true
	return nil
}

func (g *stubGuard) Release(_ context.Context, _ string, eventID uuid.UUID, _ string) error {
	delete(g.leased, eventID)
	g.released = append(g.released, eventID)
	return nil
}

type stubSubscriber struct{}

func (stubSubscriber) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

func newTestReaper(t *testing.T) (*Reaper, *storagetest.MemoryStore, *stubGuard) {
	t.Helper()
	store := storagetest.NewMemoryStore()
	guard := &stubGuard{}
	reaper, err := NewReaper(store, guard, stubSubscriber{}, quietLogger(), nil)
	require.NoError(t, err)
	return reaper, store, guard
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.DefaultVersion,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-1",
		Data:       env,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestReaperDeletesAgreementAssets(t *testing.T) {
	reaper, store, _ := newTestReaper(t)
	store.Put("signatures/u/provider.png", "image/png", []byte("p"))
	store.Put("signatures/c/client.png", "image/png", []byte("c"))

	msg := eventMessage(t, enums.EventAgreementDeleted, uuid.New(), payloads.AgreementDeletedEvent{
		AgreementID: uuid.New(),
		AssetPaths:  []string{"signatures/u/provider.png", "signatures/c/client.png", "signatures/c/gone.png"},
	})

	res := reaper.process(context.Background(), msg)
	assert.True(t, res.ack)
	assert.Empty(t, store.Paths())
}

func TestReaperSkipsDuplicates(t *testing.T) {
	reaper, store, _ := newTestReaper(t)
	eventID := uuid.New()
	msg := eventMessage(t, enums.EventSignatureReplaced, eventID, payloads.SignatureReplacedEvent{
		AgreementID:  uuid.New(),
		SignerType:   enums.SignerTypeClient,
		OldImagePath: "signatures/c/old.png",
	})
	store.Put("signatures/c/old.png", "image/png", []byte("o"))

	require.True(t, reaper.process(context.Background(), msg).ack)
	store.Put("signatures/c/old.png", "image/png", []byte("o"))
	require.True(t, reaper.process(context.Background(), msg).ack)

	assert.True(t, store.Has("signatures/c/old.png"), "duplicate delivery must not be reprocessed")
}

func TestReaperNacksAndReleasesKeyOnStoreFailure(t *testing.T) {
	reaper, store, guard := newTestReaper(t)
	store.DeleteErr = errors.New("unavailable")
	eventID := uuid.New()
	msg := eventMessage(t, enums.EventAgreementDeleted, eventID, payloads.AgreementDeletedEvent{
		AssetPaths: []string{"signatures/u/provider.png"},
	})

	res := reaper.process(context.Background(), msg)
	assert.True(t, res.nack)
	assert.Equal(t, []uuid.UUID{eventID}, guard.released)

	store.DeleteErr = nil
	assert.True(t, reaper.process(context.Background(), msg).ack, "released claim must be retryable")
}

func TestReaperAcksUnrelatedAndMalformedMessages(t *testing.T) {
	reaper, _, guard := newTestReaper(t)

	unrelated := eventMessage(t, enums.EventAgreementSent, uuid.New(), payloads.AgreementSentEvent{})
	assert.True(t, reaper.process(context.Background(), unrelated).ack)

	malformed := &pubsub.Message{
		Data:       []byte("{"),
		Attributes: map[string]string{"event_type": string(enums.EventAgreementDeleted)},
	}
	assert.True(t, reaper.process(context.Background(), malformed).ack)
	assert.Empty(t, guard.done)
}

func TestReaperNacksWhenGuardUnavailable(t *testing.T) {
	reaper, _, guard := newTestReaper(t)
	guard.err = errors.New("redis down")
	msg := eventMessage(t, enums.EventAgreementDeleted, uuid.New(), payloads.AgreementDeletedEvent{})

	assert.True(t, reaper.process(context.Background(), msg).nack)
}

func TestReaperNacksWhileAnotherDeliveryHoldsTheClaim(t *testing.T) {
	reaper, _, guard := newTestReaper(t)
	eventID := uuid.New()
	guard.done, guard.leased = map[uuid.UUID]bool{}, map[uuid.UUID]bool{eventID: true}
	msg := eventMessage(t, enums.EventAgreementDeleted, eventID, payloads.AgreementDeletedEvent{})

	assert.True(t, reaper.process(context.Background(), msg).nack)
}
