// Package idempotency deduplicates Pub/Sub deliveries of outbox events per
// consumer. A delivery first claims the event with a short lease, then
// either completes it (remembered for the processed TTL) or releases it so a
// redelivery can try again.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/ledgerly-backend/pkg/redis"
)

const (
	defaultLease = 5 * time.Minute
	doneValue    = "done"
	leasePrefix  = "lease:"
)

// Outcome is the result of a claim attempt.
type Outcome int

const (
	// Claimed means the caller owns the event until Complete or Release.
	Claimed Outcome = iota
	// AlreadyProcessed means a previous delivery completed the event.
	AlreadyProcessed
	// InFlight means another delivery holds an unexpired lease.
	InFlight
)

func (o Outcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case AlreadyProcessed:
		return "already_processed"
	case InFlight:
		return "in_flight"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Manager struct {
	store redis.ClaimStore
	ttl   time.Duration
	lease time.Duration
}

// NewManager remembers completed events for ttl. Leases default to five
// minutes, comfortably above one reaper pass over an agreement's assets.
func NewManager(store redis.ClaimStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	lease := defaultLease
	if lease > ttl {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Claim tries to take the event for consumer. The returned token must be
// passed to Release.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Outcome, string, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return 0, "", err
	}
	token := leasePrefix + uuid.NewString()
	ok, err := m.store.SetNX(ctx, key, token, m.lease)
	if err != nil {
		return 0, "", fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return Claimed, token, nil
	}

	current, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// The holder released between SETNX and GET; let the next delivery retry.
		return InFlight, "", nil
	case err != nil:
		return 0, "", fmt.Errorf("read claim %s: %w", key, err)
	case current == doneValue:
		return AlreadyProcessed, "", nil
	case strings.HasPrefix(current, leasePrefix):
		return InFlight, "", nil
	}
	return 0, "", fmt.Errorf("unexpected claim value for %s", key)
}

// Complete marks the event processed for the configured TTL.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, doneValue, m.ttl)
}

// Release drops the caller's lease. A lease that already expired and was
// re-claimed by another delivery is left alone.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID, token string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(token, leasePrefix) {
		return errors.New("release requires the claim token")
	}
	_, err = m.store.CompareAndDelete(ctx, key, token)
	return err
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.ProcessedEventKey(consumer, eventID.String()), nil
}
