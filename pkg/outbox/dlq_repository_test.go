package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

func deadLetter(t *testing.T, repo *DLQRepository, eventID, agreementID uuid.UUID, eventType enums.OutboxEventType, failedAt time.Time) {
	t.Helper()
	msg := "topic not configured"
	require.NoError(t, repo.db.Transaction(func(tx *gorm.DB) error {
		return repo.InsertTx(tx, models.OutboxDLQ{
			ID:            uuid.New(),
			EventID:       eventID,
			EventType:     eventType,
			AggregateType: enums.AggregateAgreement,
			AggregateID:   agreementID,
			Payload:       json.RawMessage(`{"version":1,"data":{}}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
			AttemptCount:  1,
			FailedAt:      failedAt,
		})
	}))
}

func TestDLQInsertTruncatesLongErrors(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	long := strings.Repeat("x", maxDLQErrorLen+50)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return repo.InsertTx(tx, models.OutboxDLQ{
			ID:            uuid.New(),
			EventID:       uuid.New(),
			EventType:     enums.EventAgreementSent,
			AggregateType: enums.AggregateAgreement,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &long,
		})
	}))

	rows, err := repo.List(context.Background(), DLQFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Len(t, *rows[0].ErrorMessage, maxDLQErrorLen)
}

func TestDLQListFiltersByAgreementAndType(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	agreementID := uuid.New()
	now := time.Now().UTC()

	deadLetter(t, repo, uuid.New(), agreementID, enums.EventAgreementSent, now.Add(-time.Hour))
	deadLetter(t, repo, uuid.New(), agreementID, enums.EventAgreementSigned, now)
	deadLetter(t, repo, uuid.New(), uuid.New(), enums.EventAgreementSent, now)

	rows, err := repo.List(context.Background(), DLQFilter{AggregateID: agreementID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, enums.EventAgreementSigned, rows[0].EventType, "newest first")

	rows, err = repo.List(context.Background(), DLQFilter{AggregateID: agreementID, EventType: enums.EventAgreementSent})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDLQReplayResetsExistingOutboxRow(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	agreementID := uuid.New()
	eventID := uuid.New()
	lastErr := "topic not configured"

	require.NoError(t, conn.Create(&models.OutboxEvent{
		ID:            eventID,
		EventType:     enums.EventAgreementSent,
		AggregateType: enums.AggregateAgreement,
		AggregateID:   agreementID,
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		AttemptCount:  10,
		LastError:     &lastErr,
	}).Error)
	deadLetter(t, repo, eventID, agreementID, enums.EventAgreementSent, time.Now().UTC())

	replayed, err := repo.Replay(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, eventID, replayed.ID)
	assert.Equal(t, 0, replayed.AttemptCount)
	assert.Nil(t, replayed.LastError)

	rows, err := repo.List(context.Background(), DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDLQReplayRecreatesPrunedRow(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	agreementID := uuid.New()
	eventID := uuid.New()
	deadLetter(t, repo, eventID, agreementID, enums.EventAgreementSigned, time.Now().UTC())

	replayed, err := repo.Replay(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, agreementID, replayed.AggregateID)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", eventID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDLQReplayUnknownEvent(t *testing.T) {
	repo := NewDLQRepository(dbtest.Open(t))

	_, err := repo.Replay(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrDLQEntryNotFound))
}
