// Package gateway adapts payment gateways to one contract: open an order,
// re-fetch a payment, authenticate callbacks and translate webhook bodies into
// gateway-neutral events. Minor-unit conversion happens only in this package.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// Gateway is implemented once per payment gateway.
type Gateway interface {
	Name() enums.GatewayName
	OpenOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchPayment(ctx context.Context, externalPaymentID string) (*PaymentRecord, error)
	VerifyWebhookSignature(rawBody []byte, signature string) bool
	VerifyClientSignature(orderID, paymentID, signature string) bool
	BuildIntentHandle(orderID string, amount decimal.Decimal) string
	// SignatureHeader names the HTTP header carrying the webhook signature.
	SignatureHeader() string
	ParseWebhook(rawBody []byte) (*WebhookEvent, error)
}

// SubscriptionGateway is implemented by gateways that support recurring mandates.
type SubscriptionGateway interface {
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionRecord, error)
	CancelSubscription(ctx context.Context, externalSubscriptionID string, atCycleEnd bool) (*SubscriptionRecord, error)
}

// RefundGateway is implemented by gateways that can refund a captured payment.
type RefundGateway interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundRecord, error)
}

type OrderRequest struct {
	IntentID   uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	ReceiptKey string
	Purpose    enums.PaymentPurpose
	Notes      map[string]string
}

type Order struct {
	ExternalOrderID string
	Amount          decimal.Decimal
	Currency        string
	Status          string
}

// PaymentRecord is a payment as the gateway reports it, in major units.
type PaymentRecord struct {
	ExternalPaymentID string
	ExternalOrderID   string
	Amount            decimal.Decimal
	Currency          string
	Status            enums.GatewayPaymentStatus
	Method            enums.PaymentMethod
	Fee               decimal.Decimal
	Tax               decimal.Decimal
	ReceiptURL        string
	Raw               json.RawMessage
}

type EventKind string

const (
	KindPayment      EventKind = "payment"
	KindSubscription EventKind = "subscription"
	KindRefund       EventKind = "refund"
	// KindIgnored marks authentic deliveries the engine has no use for.
	KindIgnored EventKind = "ignored"
)

// WebhookEvent is a verified delivery translated into gateway-neutral terms.
// Exactly one of Payment, Subscription or Refund is set unless Kind is KindIgnored.
type WebhookEvent struct {
	Kind         EventKind
	EventID      string
	EventType    string
	Payment      *PaymentRecord
	Subscription *SubscriptionRecord
	Refund       *RefundRecord
	Raw          json.RawMessage
}

type SubscriptionRecord struct {
	ExternalSubscriptionID string
	PlanID                 string
	Status                 enums.SubscriptionStatus
	TotalCount             *int
	PaidCount              int
	RemainingCount         *int
	StartAt                *time.Time
	EndAt                  *time.Time
	CurrentStart           *time.Time
	CurrentEnd             *time.Time
	ChargeAt               *time.Time
	ShortURL               string
	// Charge is set when the delivery reports a recurring charge.
	Charge *ChargeRecord
	Raw    json.RawMessage
}

type ChargeRecord struct {
	ExternalChargeID string
	Amount           decimal.Decimal
	Currency         string
	Method           enums.PaymentMethod
	ChargedAt        time.Time
	Raw              json.RawMessage
}

type RefundRecord struct {
	ExternalRefundID  string
	ExternalPaymentID string
	Amount            decimal.Decimal
	Currency          string
	Status            enums.RefundStatus
	Reason            string
	Raw               json.RawMessage
}

type SubscriptionRequest struct {
	PlanID     string
	TotalCount int
	CustomerID string
	CardID     string
	StartAt    *time.Time
	Notes      map[string]string
}

type RefundRequest struct {
	ExternalPaymentID string
	Amount            decimal.Decimal
	Currency          string
	Reason            string
	IdempotencyKey    string
	Notes             map[string]string
}
