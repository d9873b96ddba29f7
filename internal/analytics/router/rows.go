package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/internal/analytics/types"
	analyticswriter "github.com/pgwallah/pgwallah-backend/internal/analytics/writer"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
)

// Manual rent and advance events carry no currency.
const manualCurrency = "INR"

func paymentSucceededRow(envelope types.Envelope, payload any) (types.PaymentEventRow, error) {
	event, ok := payload.(*payloads.PaymentSucceededEvent)
	if !ok {
		return types.PaymentEventRow{}, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope, event.CapturedAt, event)
	if err != nil {
		return row, err
	}
	row.TenantID = uuidPtr(event.TenantID)
	row.IntentID = uuidPtr(event.IntentID)
	row.PaymentID = uuidPtr(event.PaymentID)
	row.Gateway = stringPtr(event.Gateway.String())
	row.Purpose = stringPtr(event.Purpose.String())
	row.Method = stringPtr(event.Method.String())
	row.Status = stringPtr(enums.GatewayPaymentCaptured.String())
	row.LedgerTransactionID = stringPtr(event.LedgerTransactionID)
	return withAmount(row, event.Amount, event.Currency)
}

func paymentFailedRow(envelope types.Envelope, payload any) (types.PaymentEventRow, error) {
	event, ok := payload.(*payloads.PaymentFailedEvent)
	if !ok {
		return types.PaymentEventRow{}, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope, time.Time{}, event)
	if err != nil {
		return row, err
	}
	row.TenantID = uuidPtr(event.TenantID)
	row.IntentID = uuidPtr(event.IntentID)
	row.Gateway = stringPtr(event.Gateway.String())
	row.Purpose = stringPtr(event.Purpose.String())
	row.Status = stringPtr(enums.GatewayPaymentFailed.String())
	return withAmount(row, event.Amount, event.Currency)
}

func paymentRefundedRow(envelope types.Envelope, payload any) (types.PaymentEventRow, error) {
	event, ok := payload.(*payloads.PaymentRefundedEvent)
	if !ok {
		return types.PaymentEventRow{}, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope, time.Time{}, event)
	if err != nil {
		return row, err
	}
	row.TenantID = uuidPtr(event.TenantID)
	row.IntentID = uuidPtr(event.IntentID)
	row.PaymentID = uuidPtr(event.PaymentID)
	row.Status = stringPtr(event.IntentStatus.String())
	row.LedgerTransactionID = stringPtr(event.LedgerTransactionID)
	refunded, err := money.ToMinorUnits(event.RefundedTotal, event.Currency)
	if err != nil {
		return row, fmt.Errorf("refunded total: %w", err)
	}
	row.RefundedMinor = &refunded
	return withAmount(row, event.Amount, event.Currency)
}

func rentRecordedRow(envelope types.Envelope, payload any) (types.PaymentEventRow, error) {
	event, ok := payload.(*payloads.RentPaymentRecordedEvent)
	if !ok {
		return types.PaymentEventRow{}, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope, event.PaymentDate, event)
	if err != nil {
		return row, err
	}
	row.TenantID = uuidPtr(event.TenantID)
	row.IntentID = uuidPtr(event.IntentID)
	row.PaymentID = uuidPtr(event.PaymentID)
	row.Gateway = stringPtr(enums.GatewayManual.String())
	row.Purpose = stringPtr(enums.PurposeRent.String())
	row.Status = stringPtr(enums.GatewayPaymentCaptured.String())
	row.LedgerTransactionID = stringPtr(event.LedgerTransactionID)
	return withAmount(row, event.Amount, manualCurrency)
}

func advanceRecordedRow(envelope types.Envelope, payload any) (types.PaymentEventRow, error) {
	event, ok := payload.(*payloads.AdvancePaymentRecordedEvent)
	if !ok {
		return types.PaymentEventRow{}, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope, event.PaymentDate, event)
	if err != nil {
		return row, err
	}
	row.TenantID = uuidPtr(event.TenantID)
	row.IntentID = uuidPtr(event.IntentID)
	row.PaymentID = uuidPtr(event.PaymentID)
	row.Gateway = stringPtr(enums.GatewayManual.String())
	row.Purpose = stringPtr(enums.PurposeDeposit.String())
	row.Status = stringPtr(enums.GatewayPaymentCaptured.String())
	row.LedgerTransactionID = stringPtr(event.LedgerTransactionID)
	return withAmount(row, event.Amount, manualCurrency)
}

func subscriptionChargedRow(envelope types.Envelope, payload any) (types.PaymentEventRow, error) {
	event, ok := payload.(*payloads.SubscriptionChargedEvent)
	if !ok {
		return types.PaymentEventRow{}, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope, time.Time{}, event)
	if err != nil {
		return row, err
	}
	row.TenantID = uuidPtr(event.TenantID)
	row.SubscriptionID = uuidPtr(event.SubscriptionID)
	row.PaymentID = uuidPtr(event.ChargeID)
	row.Status = stringPtr("charged")
	row.LedgerTransactionID = stringPtr(event.LedgerTransactionID)
	return withAmount(row, event.Amount, event.Currency)
}

func subscriptionStatusRow(envelope types.Envelope, payload any) (types.PaymentEventRow, error) {
	event, ok := payload.(*payloads.SubscriptionStatusChangedEvent)
	if !ok {
		return types.PaymentEventRow{}, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope, time.Time{}, event)
	if err != nil {
		return row, err
	}
	row.TenantID = uuidPtr(event.TenantID)
	row.SubscriptionID = uuidPtr(event.SubscriptionID)
	row.Status = stringPtr(string(event.To))
	return row, nil
}

func baseRow(envelope types.Envelope, occurred time.Time, payload any) (types.PaymentEventRow, error) {
	if occurred.IsZero() {
		occurred = envelope.OccurredAt
	}
	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.PaymentEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.PaymentEventRow{
		EventID:    envelope.EventID,
		EventType:  envelope.EventType.String(),
		OccurredAt: occurred.UTC(),
		Payload:    payloadJSON,
	}, nil
}

func withAmount(row types.PaymentEventRow, amount decimal.Decimal, currency string) (types.PaymentEventRow, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = manualCurrency
	}
	minor, err := money.ToMinorUnits(amount, currency)
	if err != nil {
		return row, fmt.Errorf("amount: %w", err)
	}
	row.Currency = &currency
	row.AmountMinor = &minor
	return row, nil
}

// stringPtr returns a trimmed pointer or nil when the input is empty.
func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func uuidPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	value := id.String()
	return &value
}
