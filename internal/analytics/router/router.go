package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgwallah/pgwallah-backend/internal/analytics/types"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertPaymentEvent(ctx context.Context, row types.PaymentEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventPaymentSucceeded: {
			factory: func() any { return &payloads.PaymentSucceededEvent{} },
			handler: newRowHandler(writer, logg, paymentSucceededRow),
		},
		enums.EventPaymentFailed: {
			factory: func() any { return &payloads.PaymentFailedEvent{} },
			handler: newRowHandler(writer, logg, paymentFailedRow),
		},
		enums.EventPaymentRefunded: {
			factory: func() any { return &payloads.PaymentRefundedEvent{} },
			handler: newRowHandler(writer, logg, paymentRefundedRow),
		},
		enums.EventRentPaymentRecorded: {
			factory: func() any { return &payloads.RentPaymentRecordedEvent{} },
			handler: newRowHandler(writer, logg, rentRecordedRow),
		},
		enums.EventAdvancePaymentRecorded: {
			factory: func() any { return &payloads.AdvancePaymentRecordedEvent{} },
			handler: newRowHandler(writer, logg, advanceRecordedRow),
		},
		enums.EventSubscriptionCharged: {
			factory: func() any { return &payloads.SubscriptionChargedEvent{} },
			handler: newRowHandler(writer, logg, subscriptionChargedRow),
		},
		enums.EventSubscriptionStatusChanged: {
			factory: func() any { return &payloads.SubscriptionStatusChangedEvent{} },
			handler: newRowHandler(writer, logg, subscriptionStatusRow),
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := entry.factory()
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}

// rowBuilder maps one decoded payload to its BigQuery row.
type rowBuilder func(envelope types.Envelope, payload any) (types.PaymentEventRow, error)

type rowHandler struct {
	writer Writer
	logg   *logger.Logger
	build  rowBuilder
}

func newRowHandler(writer Writer, logg *logger.Logger, build rowBuilder) Handler {
	return &rowHandler{writer: writer, logg: logg, build: build}
}

func (h *rowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	row, err := h.build(envelope, payload)
	if err != nil {
		h.logg.Error(logCtx, "analytics.row_build_failed", err)
		return err
	}
	if err := h.writer.InsertPaymentEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "analytics.row_insert_failed", err)
		return err
	}

	h.logg.Debug(logCtx, "analytics.row_inserted")
	return nil
}
