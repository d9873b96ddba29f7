package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
)

const consumerName = "receipts"

type generator interface {
	Generate(ctx context.Context, paymentID uuid.UUID) (string, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, id string) (bool, error)
	Delete(ctx context.Context, consumer, id string) error
}

// Consumer issues a receipt for each payment.succeeded event.
type Consumer struct {
	generator generator
	manager   idempotencyChecker
	logg      *logger.Logger
}

func NewConsumer(gen generator, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if gen == nil {
		return nil, fmt.Errorf("receipt generator required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{generator: gen, manager: manager, logg: logg}, nil
}

// Process handles one envelope. Returning an error asks Pub/Sub to redeliver.
func (c *Consumer) Process(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": envelope.EventType,
	})
	if enums.OutboxEventType(envelope.EventType) != enums.EventPaymentSucceeded {
		c.logg.Debug(logCtx, "receipt.event_skipped")
		return nil
	}
	if strings.TrimSpace(envelope.EventID) == "" {
		return fmt.Errorf("event id missing")
	}

	var event payloads.PaymentSucceededEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return fmt.Errorf("decode payment.succeeded: %w", err)
	}
	if event.PaymentID == uuid.Nil {
		return fmt.Errorf("payment.succeeded without payment id")
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, envelope.EventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "receipt.event_already_processed")
		return nil
	}

	if _, err := c.generator.Generate(logCtx, event.PaymentID); err != nil {
		if !pkgerrors.IsRetryable(err) {
			// the backfill job owns further attempts
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "receipt.event_dropped")
			return nil
		}
		_ = c.manager.Delete(ctx, consumerName, envelope.EventID)
		return err
	}
	return nil
}
