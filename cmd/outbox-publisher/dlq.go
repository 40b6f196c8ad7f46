package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
)

type dlqAdmin interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error)
}

type dlqCommand struct {
	list      bool
	agreement string
	replay    string
}

func (c dlqCommand) requested() bool {
	return c.list || c.replay != ""
}

type dlqLine struct {
	EventID     uuid.UUID `json:"event_id"`
	EventType   string    `json:"event_type"`
	AgreementID uuid.UUID `json:"aggregate_id"`
	Reason      string    `json:"reason"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	FailedAt    string    `json:"failed_at"`
}

// runDLQ prints dead-lettered events as JSON lines or replays one of them.
func runDLQ(ctx context.Context, admin dlqAdmin, cmd dlqCommand, out io.Writer) error {
	if cmd.replay != "" {
		eventID, err := uuid.Parse(cmd.replay)
		if err != nil {
			return fmt.Errorf("invalid -dlq-replay event id: %w", err)
		}
		event, err := admin.Replay(ctx, eventID)
		if err != nil {
			return fmt.Errorf("replay %s: %w", eventID, err)
		}
		_, err = fmt.Fprintf(out, "requeued %s (%s for %s)\n", event.ID, event.EventType, event.AggregateID)
		return err
	}

	filter := outbox.DLQFilter{}
	if cmd.agreement != "" {
		id, err := uuid.Parse(cmd.agreement)
		if err != nil {
			return fmt.Errorf("invalid -dlq-agreement id: %w", err)
		}
		filter.AggregateID = id
	}
	rows, err := admin.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}
	enc := json.NewEncoder(out)
	for _, row := range rows {
		line := dlqLine{
			EventID:     row.EventID,
			EventType:   string(row.EventType),
			AgreementID: row.AggregateID,
			Reason:      string(row.ErrorReason),
			Attempts:    row.AttemptCount,
			FailedAt:    row.FailedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if row.ErrorMessage != nil {
			line.Error = *row.ErrorMessage
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
