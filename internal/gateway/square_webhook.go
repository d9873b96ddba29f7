package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
	"github.com/pgwallah/pgwallah-backend/pkg/square"
)

type squareEnvelope struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		Type   string                     `json:"type"`
		ID     string                     `json:"id"`
		Object map[string]json.RawMessage `json:"object"`
	} `json:"data"`
}

type squareInvoice struct {
	ID              string `json:"id"`
	SubscriptionID  string `json:"subscription_id"`
	Status          string `json:"status"`
	UpdatedAt       string `json:"updated_at"`
	PaymentRequests []struct {
		TotalCompletedAmountMoney square.Money `json:"total_completed_amount_money"`
	} `json:"payment_requests"`
}

// ParseWebhook translates a verified Square delivery.
func (s *Square) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var env squareEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid square webhook body")
	}
	eventType := strings.ToLower(strings.TrimSpace(env.Type))
	if eventType == "" || env.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square webhook type or event id missing")
	}
	event := &WebhookEvent{
		Kind:      KindIgnored,
		EventID:   env.EventID,
		EventType: eventType,
		Raw:       json.RawMessage(rawBody),
	}

	switch eventType {
	case "payment.created", "payment.updated":
		var payment square.Payment
		if err := decodeSquareObject(env, "payment", &payment); err != nil {
			return nil, err
		}
		payment.Raw = json.RawMessage(rawBody)
		record, ok := squarePaymentRecord(&payment)
		if !ok {
			return event, nil
		}
		event.Kind = KindPayment
		event.Payment = record

	case "refund.created", "refund.updated":
		var refund square.Refund
		if err := decodeSquareObject(env, "refund", &refund); err != nil {
			return nil, err
		}
		refund.Raw = json.RawMessage(rawBody)
		event.Kind = KindRefund
		event.Refund = squareRefundRecord(&refund)

	case "subscription.created", "subscription.updated":
		var sub squareSubscription
		if err := decodeSquareObject(env, "subscription", &sub); err != nil {
			return nil, err
		}
		record := squareSubscriptionRecord(sub)
		record.Raw = json.RawMessage(rawBody)
		event.Kind = KindSubscription
		event.Subscription = record

	case "invoice.payment_made":
		var invoice squareInvoice
		if err := decodeSquareObject(env, "invoice", &invoice); err != nil {
			return nil, err
		}
		if invoice.SubscriptionID == "" || len(invoice.PaymentRequests) == 0 {
			return event, nil
		}
		paid := invoice.PaymentRequests[0].TotalCompletedAmountMoney
		currency := strings.ToUpper(paid.Currency)
		chargedAt := time.Now().UTC()
		if parsed, err := time.Parse(time.RFC3339, invoice.UpdatedAt); err == nil {
			chargedAt = parsed.UTC()
		}
		event.Kind = KindSubscription
		event.Subscription = &SubscriptionRecord{
			ExternalSubscriptionID: invoice.SubscriptionID,
			Status:                 enums.SubscriptionStatusActive,
			Charge: &ChargeRecord{
				ExternalChargeID: invoice.ID,
				Amount:           money.FromMinorUnits(paid.Amount, currency),
				Currency:         currency,
				Method:           enums.PaymentMethodCard,
				ChargedAt:        chargedAt,
				Raw:              json.RawMessage(rawBody),
			},
			Raw: json.RawMessage(rawBody),
		}
	}
	return event, nil
}

func decodeSquareObject(env squareEnvelope, key string, out any) error {
	raw, ok := env.Data.Object[key]
	if !ok || len(raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "square webhook "+key+" object missing")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid square "+key+" object")
	}
	return nil
}
