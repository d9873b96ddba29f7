package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	retryBase          = 2 * time.Second
	retryCap           = 5 * time.Minute
	idleBackoffCap     = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, retryAt time.Time) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sink publishes one message to a topic and waits for the server id.
type sink interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

// RelayParams groups the relay dependencies. Zero tuning values fall back to
// the package defaults.
type RelayParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Events      eventStore
	DLQ         deadLetters
	Registry    resolver
	Sink        sink
	Metrics     *metrics.OutboxMetrics
	BatchSize   int
	Poll        time.Duration
	MaxAttempts int
}

// Relay moves committed outbox rows to Pub/Sub. Delivery is at least once:
// a row is marked published only after the broker acknowledged it, in the
// same transaction that claimed it.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	events      eventStore
	dlq         deadLetters
	registry    resolver
	sink        sink
	metrics     *metrics.OutboxMetrics
	batchSize   int
	poll        time.Duration
	maxAttempts int
	now         func() time.Time
	jitter      func(time.Duration) time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Events == nil:
		return nil, errors.New("outbox repository is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.Sink == nil:
		return nil, errors.New("pubsub sink is required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		events:      p.Events,
		dlq:         p.DLQ,
		registry:    p.Registry,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batchSize:   p.BatchSize,
		poll:        p.Poll,
		maxAttempts: p.MaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		jitter:      randomJitter,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	return r, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty batch sleeps for the poll interval and a failed
// batch backs off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.sink.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := r.RelayBatch(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, idleBackoffCap)
		case claimed >= r.batchSize:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		if err := sleepCtx(ctx, r.jitter(wait)); err != nil {
			return err
		}
	}
}

// RelayBatch claims one batch and settles every row in it. It returns the
// number of rows claimed.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)
		r.metrics.ObserveBatch(claimed)
		for _, row := range rows {
			if err := r.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// settle publishes one row and records the result. Only bookkeeping errors
// are returned; publish failures are recorded on the row.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType.String(),
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Descriptor.Topic,
	})

	pubErr := r.publish(ctx, row, resolved)
	if pubErr == nil {
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.IncResult(row.EventType.String(), metrics.OutboxPublished)
		r.logg.Info(logCtx, "outbox.published")
		return nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	attempt := row.AttemptCount + 1
	if attempt >= r.maxAttempts {
		return r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", attempt, pubErr))
	}

	retryAt := r.now().Add(r.jitter(retryDelay(attempt)))
	if err := r.events.MarkFailedTx(tx, row.ID, pubErr, retryAt); err != nil {
		return fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	r.metrics.IncResult(row.EventType.String(), metrics.OutboxRetried)
	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"error":    pubErr.Error(),
		"retry_at": retryAt.Format(time.RFC3339),
	}), "outbox.publish_failed")
	return nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	if topic == "" {
		return registry.NewNonRetryableError(fmt.Errorf("no topic for %s", row.EventType))
	}
	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     row.EventType.String(),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"subject":        resolved.Envelope.Subject,
		},
	}
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := r.sink.Publish(publishCtx, topic, msg)
	return err
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      r.now(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncResult(row.EventType.String(), metrics.OutboxDeadLettered)
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error":        msg,
		"error_reason": string(reason),
	}), "outbox.dead_lettered")
	return nil
}

// retryDelay doubles from retryBase per attempt up to retryCap.
func retryDelay(attempt int) time.Duration {
	d := retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= retryCap {
			return retryCap
		}
	}
	return d
}

func randomJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
