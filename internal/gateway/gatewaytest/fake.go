// Package gatewaytest provides an in-memory gateway for service tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

const SignatureHeader = "X-Test-Signature"

// Fake implements Gateway, SubscriptionGateway and RefundGateway. Webhook
// bodies are JSON encodings of gateway.WebhookEvent signed with hex HMAC.
type Fake struct {
	GatewayName enums.GatewayName
	Secret      string

	OrderErr        error
	FetchErr        error
	RefundErr       error
	SubscriptionErr error

	mu            sync.Mutex
	orderSeq      int
	refundSeq     int
	payments      map[string]*gateway.PaymentRecord
	Orders        []gateway.OrderRequest
	Refunds       []gateway.RefundRequest
	Subscriptions []gateway.SubscriptionRequest
	Cancelled     []string
}

// New returns a fake registered under name.
func New(name enums.GatewayName, secret string) *Fake {
	return &Fake{
		GatewayName: name,
		Secret:      secret,
		payments:    map[string]*gateway.PaymentRecord{},
	}
}

// SetPayment makes FetchPayment return record for its external payment id.
func (f *Fake) SetPayment(record gateway.PaymentRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[record.ExternalPaymentID] = &record
}

// Sign returns the signature a genuine delivery of body would carry.
func (f *Fake) Sign(body []byte) string {
	return gateway.SignHex(body, f.Secret)
}

// SignClient returns a valid client confirmation signature.
func (f *Fake) SignClient(orderID, paymentID string) string {
	return gateway.SignHex(gateway.ClientSignaturePayload(orderID, paymentID), f.Secret)
}

// Body encodes event the way ParseWebhook expects it.
func Body(event gateway.WebhookEvent) []byte {
	raw, _ := json.Marshal(event)
	return raw
}

func (f *Fake) Name() enums.GatewayName { return f.GatewayName }

func (f *Fake) SignatureHeader() string { return SignatureHeader }

func (f *Fake) OpenOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Orders = append(f.Orders, req)
	if f.OrderErr != nil {
		return nil, f.OrderErr
	}
	f.orderSeq++
	return &gateway.Order{
		ExternalOrderID: fmt.Sprintf("order_%d", f.orderSeq),
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          "created",
	}, nil
}

func (f *Fake) FetchPayment(_ context.Context, externalPaymentID string) (*gateway.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	record, ok := f.payments[externalPaymentID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found at gateway")
	}
	out := *record
	return &out, nil
}

func (f *Fake) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return f.Secret != "" && signature != "" && signature == f.Sign(rawBody)
}

func (f *Fake) VerifyClientSignature(orderID, paymentID, signature string) bool {
	return f.Secret != "" && signature != "" && signature == f.SignClient(orderID, paymentID)
}

func (f *Fake) BuildIntentHandle(orderID string, amount decimal.Decimal) string {
	return fmt.Sprintf("test://pay/%s?am=%s", orderID, amount.StringFixed(2))
}

func (f *Fake) ParseWebhook(rawBody []byte) (*gateway.WebhookEvent, error) {
	var event gateway.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook")
	}
	if event.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event id missing")
	}
	event.Raw = json.RawMessage(rawBody)
	return &event, nil
}

func (f *Fake) Refund(_ context.Context, req gateway.RefundRequest) (*gateway.RefundRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refunds = append(f.Refunds, req)
	if f.RefundErr != nil {
		return nil, f.RefundErr
	}
	f.refundSeq++
	return &gateway.RefundRecord{
		ExternalRefundID:  fmt.Sprintf("rfnd_%d", f.refundSeq),
		ExternalPaymentID: req.ExternalPaymentID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            enums.RefundStatusPending,
		Reason:            req.Reason,
	}, nil
}

func (f *Fake) CreateSubscription(_ context.Context, req gateway.SubscriptionRequest) (*gateway.SubscriptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Subscriptions = append(f.Subscriptions, req)
	if f.SubscriptionErr != nil {
		return nil, f.SubscriptionErr
	}
	total := req.TotalCount
	return &gateway.SubscriptionRecord{
		ExternalSubscriptionID: fmt.Sprintf("sub_%d", len(f.Subscriptions)),
		PlanID:                 req.PlanID,
		Status:                 enums.SubscriptionStatusCreated,
		TotalCount:             &total,
		RemainingCount:         &total,
		ShortURL:               "https://pay.test/sub",
	}, nil
}

func (f *Fake) CancelSubscription(_ context.Context, externalSubscriptionID string, _ bool) (*gateway.SubscriptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, externalSubscriptionID)
	if f.SubscriptionErr != nil {
		return nil, f.SubscriptionErr
	}
	return &gateway.SubscriptionRecord{
		ExternalSubscriptionID: externalSubscriptionID,
		Status:                 enums.SubscriptionStatusCancelled,
	}, nil
}

var (
	_ gateway.Gateway             = (*Fake)(nil)
	_ gateway.RefundGateway       = (*Fake)(nil)
	_ gateway.SubscriptionGateway = (*Fake)(nil)
)
