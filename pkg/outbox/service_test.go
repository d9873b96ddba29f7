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

	"github.com/pgwallah/pgwallah-backend/internal/repo/repotest"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := repotest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	aggregateID := uuid.New()
	tenantID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPaymentSucceeded,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   aggregateID,
			Subject:       tenantID.String(),
			Data:          map[string]string{"external_payment_id": "pay_1"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, "payment.succeeded", envelope.EventType)
	assert.Equal(t, "pgwallah.payments", envelope.Source)
	assert.Equal(t, tenantID.String(), envelope.Subject)
	assert.NotEmpty(t, envelope.EventID)
	assert.JSONEq(t, `{"external_payment_id":"pay_1"}`, string(envelope.Data))
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := repotest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   uuid.New(),
			Data:          map[string]string{},
		}); err != nil {
			return err
		}
		return errors.New("ledger imbalance")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidatesEvent(t *testing.T) {
	conn := repotest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, DomainEvent{}))
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: "bogus", AggregateType: enums.AggregatePaymentIntent, AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventPaymentFailed, AggregateType: "bogus", AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventPaymentFailed, AggregateType: enums.AggregatePaymentIntent}))
}

func seedOutbox(t *testing.T, conn *gorm.DB, createdAt time.Time) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     createdAt,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := repotest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()

	first := seedOutbox(t, conn, now.Add(-2*time.Minute))
	second := seedOutbox(t, conn, now.Add(-time.Minute))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)

	require.NoError(t, repo.MarkPublishedTx(conn, first.ID))
	require.NoError(t, repo.MarkFailedTx(conn, second.ID, errors.New("unavailable"), now.Add(time.Hour)))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows, "failed row is not due until its retry time")

	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", second.ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "unavailable", *failed.LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, second.ID, errors.New("gave up"), 3))
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", second.ID).Update("next_attempt_at", nil).Error)
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows, "terminal rows are never fetched again")

	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	conn := repotest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()

	old := seedOutbox(t, conn, now.Add(-72*time.Hour))
	fresh := seedOutbox(t, conn, now.Add(-time.Hour))
	unpublished := seedOutbox(t, conn, now.Add(-72*time.Hour))
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", old.ID).Update("published_at", now.Add(-48*time.Hour)).Error)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", fresh.ID).Update("published_at", now.Add(-time.Minute)).Error)

	deleted, err := repo.DeletePublishedBefore(context.Background(), now.Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&remaining).Error)
	ids := []uuid.UUID{remaining[0].ID, remaining[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{fresh.ID, unpublished.ID}, ids)
}

func TestDLQRepository(t *testing.T) {
	conn := repotest.Open(t)
	dlq := NewDLQRepository(conn)
	eventID := uuid.New()
	long := strings.Repeat("x", 2000)

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		FailedAt:      time.Now().UTC(),
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	rows, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDLQRequeueResetsOutboxRow(t *testing.T) {
	conn := repotest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)
	ctx := context.Background()

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentRefunded,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
	require.NoError(t, repo.Insert(conn, event))
	require.NoError(t, repo.MarkTerminalTx(conn, event.ID, errors.New("topic missing"), 10))
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		FailedAt:      time.Now().UTC(),
	}))

	require.NoError(t, dlq.Requeue(ctx, event.ID))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].AttemptCount)
	assert.Nil(t, rows[0].LastError)

	gone, err := dlq.FindByEventID(ctx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	err = dlq.Requeue(ctx, event.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDLQRequeueRefusesPublishedRow(t *testing.T) {
	conn := repotest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, event))
	require.NoError(t, repo.MarkPublishedTx(conn, event.ID))
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		FailedAt:      time.Now().UTC(),
	}))

	err := dlq.Requeue(context.Background(), event.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	// the failed requeue rolled back, so the dead letter is still there
	kept, err := dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
