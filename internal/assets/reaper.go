package assets

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/registry"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

// ReaperConsumerName scopes idempotency keys for the reaper.
const ReaperConsumerName = "asset-reaper"

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type idempotencyGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Outcome, string, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID, token string) error
}

// Reaper re-attempts object deletions announced by agreement_deleted and
// signature_replaced events. Request paths already try these deletions after
// commit; the reaper catches the ones that failed.
type Reaper struct {
	store        storage.Store
	idempotency  idempotencyGuard
	decoders     *registry.Decoders[[]string]
	subscription subscriber
	logg         *logger.Logger
	metrics      *metrics.SigningMetrics
}

func NewReaper(store storage.Store, guard idempotencyGuard, subscription subscriber, logg *logger.Logger, m *metrics.SigningMetrics) (*Reaper, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if guard == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if subscription == nil {
		return nil, errors.New("assets subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Reaper{
		store:        store,
		idempotency:  guard,
		decoders:     reaperDecoders(),
		subscription: subscription,
		logg:         logg,
		metrics:      m,
	}, nil
}

// reaperDecoders projects each handled event to the object paths it
// orphaned.
func reaperDecoders() *registry.Decoders[[]string] {
	d := registry.NewDecoders[[]string]()
	d.Register(enums.EventAgreementDeleted, outbox.DefaultVersion, registry.JSON(func(evt payloads.AgreementDeletedEvent) []string {
		return evt.AssetPaths
	}))
	d.Register(enums.EventSignatureReplaced, outbox.DefaultVersion, registry.JSON(func(evt payloads.SignatureReplacedEvent) []string {
		return []string{evt.OldImagePath}
	}))
	return d
}

// Run processes messages until the context is canceled.
func (r *Reaper) Run(ctx context.Context) error {
	return r.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if r.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (r *Reaper) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"message_id":   msg.ID,
		"event_type":   eventType,
		"aggregate_id": msg.Attributes["aggregate_id"],
	})
	if !r.decoders.Handles(eventType) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		r.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		r.logg.Error(logCtx, "envelope missing event id", err)
		return processResult{ack: true}
	}
	logCtx = r.logg.WithField(logCtx, "event_id", eventID.String())

	paths, err := r.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		r.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	outcome, token, err := r.idempotency.Claim(ctx, ReaperConsumerName, eventID)
	if err != nil {
		r.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	switch outcome {
	case idempotency.AlreadyProcessed:
		r.logg.Info(logCtx, "event already reaped")
		return processResult{ack: true}
	case idempotency.InFlight:
		r.logg.Info(logCtx, "event being reaped by another delivery")
		return processResult{nack: true}
	}

	var errs error
	for _, p := range paths {
		if err := DeleteObject(ctx, r.store, p); err != nil {
			r.metrics.IncSideEffectFailure(metrics.SideEffectAssetDelete)
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		if relErr := r.idempotency.Release(ctx, ReaperConsumerName, eventID, token); relErr != nil {
			r.logg.Error(logCtx, "failed to release idempotency claim", relErr)
		}
		r.logg.Error(r.logg.WithField(logCtx, "failed_paths", len(multierr.Errors(errs))), "asset reap incomplete", errs)
		return processResult{nack: true}
	}
	if err := r.idempotency.Complete(ctx, ReaperConsumerName, eventID); err != nil {
		// Objects are gone; a redelivery will find nothing left to delete.
		r.logg.Error(logCtx, "failed to record reaped event", err)
	}

	r.logg.Info(r.logg.WithField(logCtx, "paths", len(paths)), "assets reaped")
	return processResult{ack: true}
}
