package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// PaymentEventRow mirrors the payment_events BigQuery schema. Amounts are in
// minor units of Currency.
type PaymentEventRow struct {
	EventID             string             `bigquery:"event_id"`
	EventType           string             `bigquery:"event_type"`
	OccurredAt          time.Time          `bigquery:"occurred_at"`
	TenantID            *string            `bigquery:"tenant_id"`
	IntentID            *string            `bigquery:"intent_id"`
	PaymentID           *string            `bigquery:"payment_id"`
	SubscriptionID      *string            `bigquery:"subscription_id"`
	Gateway             *string            `bigquery:"gateway"`
	Purpose             *string            `bigquery:"purpose"`
	Method              *string            `bigquery:"method"`
	Status              *string            `bigquery:"status"`
	Currency            *string            `bigquery:"currency"`
	AmountMinor         *int64             `bigquery:"amount_minor"`
	RefundedMinor       *int64             `bigquery:"refunded_minor"`
	LedgerTransactionID *string            `bigquery:"ledger_transaction_id"`
	Payload             cbigquery.NullJSON `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver. The event id is the insert id so
// streaming retries of one event are deduplicated.
func (r *PaymentEventRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":              r.EventID,
		"event_type":            r.EventType,
		"occurred_at":           r.OccurredAt,
		"tenant_id":             nullable(r.TenantID),
		"intent_id":             nullable(r.IntentID),
		"payment_id":            nullable(r.PaymentID),
		"subscription_id":       nullable(r.SubscriptionID),
		"gateway":               nullable(r.Gateway),
		"purpose":               nullable(r.Purpose),
		"method":                nullable(r.Method),
		"status":                nullable(r.Status),
		"currency":              nullable(r.Currency),
		"amount_minor":          nullableInt(r.AmountMinor),
		"refunded_minor":        nullableInt(r.RefundedMinor),
		"ledger_transaction_id": nullable(r.LedgerTransactionID),
		"payload":               nil,
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}

func nullable(value *string) cbigquery.Value {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int64) cbigquery.Value {
	if value == nil {
		return nil
	}
	return *value
}

// PaymentEventSchema is the payment_events table layout used when the table
// is provisioned by the worker. Column names match Save.
func PaymentEventSchema() cbigquery.Schema {
	str := func(name string, required bool) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: cbigquery.StringFieldType, Required: required}
	}
	return cbigquery.Schema{
		str("event_id", true),
		str("event_type", true),
		{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
		str("tenant_id", false),
		str("intent_id", false),
		str("payment_id", false),
		str("subscription_id", false),
		str("gateway", false),
		str("purpose", false),
		str("method", false),
		str("status", false),
		str("currency", false),
		{Name: "amount_minor", Type: cbigquery.IntegerFieldType},
		{Name: "refunded_minor", Type: cbigquery.IntegerFieldType},
		str("ledger_transaction_id", false),
		{Name: "payload", Type: cbigquery.JSONFieldType},
	}
}
