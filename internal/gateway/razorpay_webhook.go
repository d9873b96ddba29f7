package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
	"github.com/pgwallah/pgwallah-backend/pkg/razorpay"
)

type razorpayEnvelope struct {
	Entity    string          `json:"entity"`
	Event     string          `json:"event"`
	CreatedAt int64           `json:"created_at"`
	Payload   razorpayPayload `json:"payload"`
}

type razorpayPayload struct {
	Payment      *razorpayEntity `json:"payment"`
	Subscription *razorpayEntity `json:"subscription"`
	Refund       *razorpayEntity `json:"refund"`
}

type razorpayEntity struct {
	Entity json.RawMessage `json:"entity"`
}

// razorpaySubscriptionEvents maps subscription.* webhooks to the status they imply
// when the embedded entity does not say otherwise.
var razorpaySubscriptionEvents = map[string]enums.SubscriptionStatus{
	"subscription.authenticated": enums.SubscriptionStatusAuthenticated,
	"subscription.activated":     enums.SubscriptionStatusActive,
	"subscription.charged":       enums.SubscriptionStatusActive,
	"subscription.resumed":       enums.SubscriptionStatusActive,
	"subscription.pending":       enums.SubscriptionStatusActive,
	"subscription.paused":        enums.SubscriptionStatusPaused,
	"subscription.halted":        enums.SubscriptionStatusHalted,
	"subscription.cancelled":     enums.SubscriptionStatusCancelled,
	"subscription.completed":     enums.SubscriptionStatusCompleted,
}

// ParseWebhook translates a verified Razorpay delivery. Razorpay bodies carry
// no event id, so EventID is derived from the event name and entity id; the
// webhook handler prefers the X-Razorpay-Event-Id header when present.
func (r *Razorpay) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var env razorpayEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid razorpay webhook body")
	}
	eventType := strings.ToLower(strings.TrimSpace(env.Event))
	if eventType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay webhook event missing")
	}
	event := &WebhookEvent{EventType: eventType, Raw: json.RawMessage(rawBody)}

	switch {
	case eventType == "payment.authorized" || eventType == "payment.captured" ||
		eventType == "payment.failed" || eventType == "order.paid":
		payment, err := decodeRazorpayPayment(env.Payload.Payment)
		if err != nil {
			return nil, err
		}
		if eventType == "order.paid" {
			payment.Status = "captured"
		}
		record, err := razorpayPaymentRecord(payment)
		if err != nil {
			return nil, err
		}
		record.Raw = json.RawMessage(rawBody)
		event.Kind = KindPayment
		event.Payment = record
		event.EventID = eventType + ":" + record.ExternalPaymentID

	case strings.HasPrefix(eventType, "subscription."):
		implied, known := razorpaySubscriptionEvents[eventType]
		if !known {
			event.Kind = KindIgnored
			event.EventID = fmt.Sprintf("%s:%d", eventType, env.CreatedAt)
			return event, nil
		}
		record, err := r.parseSubscriptionPayload(env, implied)
		if err != nil {
			return nil, err
		}
		record.Raw = json.RawMessage(rawBody)
		event.Kind = KindSubscription
		event.Subscription = record
		event.EventID = eventType + ":" + record.ExternalSubscriptionID
		if record.Charge != nil {
			event.EventID = eventType + ":" + record.Charge.ExternalChargeID
		}

	case eventType == "refund.processed" || eventType == "refund.failed" || eventType == "refund.created":
		if env.Payload.Refund == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay refund entity missing")
		}
		var refund razorpay.Refund
		if err := json.Unmarshal(env.Payload.Refund.Entity, &refund); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid razorpay refund entity")
		}
		if refund.ID == "" || refund.PaymentID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay refund entity incomplete")
		}
		currency := strings.ToUpper(refund.Currency)
		event.Kind = KindRefund
		event.Refund = &RefundRecord{
			ExternalRefundID:  refund.ID,
			ExternalPaymentID: refund.PaymentID,
			Amount:            money.FromMinorUnits(refund.Amount, currency),
			Currency:          currency,
			Status:            razorpayRefundStatus(refund.Status),
			Raw:               json.RawMessage(rawBody),
		}
		event.EventID = eventType + ":" + refund.ID

	default:
		event.Kind = KindIgnored
		event.EventID = fmt.Sprintf("%s:%d", eventType, env.CreatedAt)
	}
	return event, nil
}

func (r *Razorpay) parseSubscriptionPayload(env razorpayEnvelope, implied enums.SubscriptionStatus) (*SubscriptionRecord, error) {
	if env.Payload.Subscription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay subscription entity missing")
	}
	var sub razorpay.Subscription
	if err := json.Unmarshal(env.Payload.Subscription.Entity, &sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid razorpay subscription entity")
	}
	if sub.Status == "" {
		sub.Status = implied.String()
	}
	record, err := razorpaySubscriptionRecord(&sub)
	if err != nil {
		return nil, err
	}

	if env.Event == "subscription.charged" {
		payment, err := decodeRazorpayPayment(env.Payload.Payment)
		if err != nil {
			return nil, err
		}
		currency := strings.ToUpper(payment.Currency)
		chargedAt := time.Unix(env.CreatedAt, 0).UTC()
		if payment.CreatedAt > 0 {
			chargedAt = time.Unix(payment.CreatedAt, 0).UTC()
		}
		record.Charge = &ChargeRecord{
			ExternalChargeID: payment.ID,
			Amount:           money.FromMinorUnits(payment.Amount, currency),
			Currency:         currency,
			Method:           enums.NormalizePaymentMethod(payment.Method),
			ChargedAt:        chargedAt,
			Raw:              payment.Raw,
		}
	}
	return record, nil
}

func decodeRazorpayPayment(wrapper *razorpayEntity) (*razorpay.Payment, error) {
	if wrapper == nil || len(wrapper.Entity) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay payment entity missing")
	}
	var payment razorpay.Payment
	if err := json.Unmarshal(wrapper.Entity, &payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid razorpay payment entity")
	}
	if payment.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay payment id missing")
	}
	payment.Raw = wrapper.Entity
	return &payment, nil
}
