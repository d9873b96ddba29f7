package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/internal/analytics/types"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
)

type fakeWriter struct {
	inserted []types.PaymentEventRow
	err      error
}

func (f *fakeWriter) InsertPaymentEvent(_ context.Context, row types.PaymentEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
}

func envelopeFor(t *testing.T, eventType enums.OutboxEventType, payload any) types.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		Payload:    raw,
	}
}

func TestNewRouterValidation(t *testing.T) {
	if _, err := NewRouter(nil, testLogger(), nil); err == nil {
		t.Fatal("expected error when writer missing")
	}
	if _, err := NewRouter(&fakeWriter{}, nil, nil); err == nil {
		t.Fatal("expected error when logger missing")
	}
}

func TestPaymentSucceededRow(t *testing.T) {
	writer := &fakeWriter{}
	r, err := NewRouter(writer, testLogger(), nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	captured := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)
	event := payloads.PaymentSucceededEvent{
		IntentID:            uuid.New(),
		PaymentID:           uuid.New(),
		TenantID:            uuid.New(),
		Gateway:             enums.GatewayRazorpay,
		Amount:              decimal.RequireFromString("500.25"),
		Currency:            "INR",
		Purpose:             enums.PurposeRent,
		Method:              enums.PaymentMethodUPI,
		LedgerTransactionID: "PAY_pay_1",
		CapturedAt:          captured,
	}

	if err := r.Handle(context.Background(), envelopeFor(t, enums.EventPaymentSucceeded, event)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.AmountMinor == nil || *row.AmountMinor != 50025 {
		t.Fatalf("amount minor mismatch: %v", row.AmountMinor)
	}
	if !row.OccurredAt.Equal(captured) {
		t.Fatalf("expected occurred_at from captured_at, got %s", row.OccurredAt)
	}
	if row.Status == nil || *row.Status != "captured" {
		t.Fatalf("unexpected status %v", row.Status)
	}
	if row.PaymentID == nil || *row.PaymentID != event.PaymentID.String() {
		t.Fatalf("payment id mismatch: %v", row.PaymentID)
	}
	if !row.Payload.Valid {
		t.Fatal("payload json not valid")
	}
}

func TestPaymentRefundedRow(t *testing.T) {
	writer := &fakeWriter{}
	r, _ := NewRouter(writer, testLogger(), nil)
	event := payloads.PaymentRefundedEvent{
		IntentID:      uuid.New(),
		PaymentID:     uuid.New(),
		TenantID:      uuid.New(),
		Amount:        decimal.NewFromInt(400),
		Currency:      "INR",
		RefundedTotal: decimal.NewFromInt(600),
		IntentStatus:  enums.IntentStatusPartiallyRefunded,
	}
	if err := r.Handle(context.Background(), envelopeFor(t, enums.EventPaymentRefunded, event)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	row := writer.inserted[0]
	if row.RefundedMinor == nil || *row.RefundedMinor != 60000 {
		t.Fatalf("refunded minor mismatch: %v", row.RefundedMinor)
	}
	if row.AmountMinor == nil || *row.AmountMinor != 40000 {
		t.Fatalf("amount minor mismatch: %v", row.AmountMinor)
	}
	if !row.OccurredAt.Equal(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected envelope occurred_at, got %s", row.OccurredAt)
	}
}

func TestRentRecordedRowDefaultsCurrency(t *testing.T) {
	writer := &fakeWriter{}
	r, _ := NewRouter(writer, testLogger(), nil)
	event := payloads.RentPaymentRecordedEvent{
		RentPaymentID: uuid.New(),
		IntentID:      uuid.New(),
		PaymentID:     uuid.New(),
		TenantID:      uuid.New(),
		RoomNo:        "G-12",
		Amount:        decimal.NewFromInt(3000),
		PaymentDate:   time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	if err := r.Handle(context.Background(), envelopeFor(t, enums.EventRentPaymentRecorded, event)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	row := writer.inserted[0]
	if row.Currency == nil || *row.Currency != "INR" {
		t.Fatalf("unexpected currency %v", row.Currency)
	}
	if row.Gateway == nil || *row.Gateway != "manual" {
		t.Fatalf("unexpected gateway %v", row.Gateway)
	}
	if row.Purpose == nil || *row.Purpose != "rent" {
		t.Fatalf("unexpected purpose %v", row.Purpose)
	}
}

func TestSubscriptionStatusRowHasNoAmount(t *testing.T) {
	writer := &fakeWriter{}
	r, _ := NewRouter(writer, testLogger(), nil)
	event := payloads.SubscriptionStatusChangedEvent{
		SubscriptionID: uuid.New(),
		TenantID:       uuid.New(),
		From:           enums.SubscriptionStatusActive,
		To:             enums.SubscriptionStatusPaused,
	}
	if err := r.Handle(context.Background(), envelopeFor(t, enums.EventSubscriptionStatusChanged, event)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	row := writer.inserted[0]
	if row.AmountMinor != nil {
		t.Fatalf("expected no amount, got %d", *row.AmountMinor)
	}
	if row.Status == nil || *row.Status != "paused" {
		t.Fatalf("unexpected status %v", row.Status)
	}
}

func TestRouterRejectsUnsupportedAndEmpty(t *testing.T) {
	r, _ := NewRouter(&fakeWriter{}, testLogger(), nil)

	err := r.Handle(context.Background(), types.Envelope{EventType: "order.created", Payload: json.RawMessage(`{}`)})
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if err := r.Handle(context.Background(), types.Envelope{EventType: enums.EventPaymentFailed}); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestRouterPropagatesWriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bigquery down")}
	r, _ := NewRouter(writer, testLogger(), nil)
	event := payloads.PaymentFailedEvent{IntentID: uuid.New(), TenantID: uuid.New(), Amount: decimal.NewFromInt(10), Currency: "INR"}
	if err := r.Handle(context.Background(), envelopeFor(t, enums.EventPaymentFailed, event)); err == nil {
		t.Fatal("expected writer error")
	}
}

type countingHandler struct{ calls int }

func (h *countingHandler) Handle(context.Context, types.Envelope, any) error {
	h.calls++
	return nil
}

func TestRouterOverride(t *testing.T) {
	writer := &fakeWriter{}
	custom := &countingHandler{}
	r, _ := NewRouter(writer, testLogger(), map[enums.OutboxEventType]Handler{enums.EventPaymentFailed: custom})
	event := payloads.PaymentFailedEvent{IntentID: uuid.New(), Amount: decimal.NewFromInt(10), Currency: "INR"}
	if err := r.Handle(context.Background(), envelopeFor(t, enums.EventPaymentFailed, event)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if custom.calls != 1 || len(writer.inserted) != 0 {
		t.Fatalf("override not used: calls=%d inserted=%d", custom.calls, len(writer.inserted))
	}
}
