package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/square"
)

type fakeSquareClient struct {
	orderParams square.OrderCreateParams
	order       *square.Order
	payment     *square.Payment
	refund      *square.Refund
	sub         *sq.Subscription
	err         error
}

func (f *fakeSquareClient) CreateOrder(_ context.Context, params square.OrderCreateParams) (*square.Order, error) {
	f.orderParams = params
	return f.order, f.err
}

func (f *fakeSquareClient) GetPayment(context.Context, string) (*square.Payment, error) {
	return f.payment, f.err
}

func (f *fakeSquareClient) RefundPayment(context.Context, square.RefundCreateParams) (*square.Refund, error) {
	return f.refund, f.err
}

func (f *fakeSquareClient) CreateSubscription(context.Context, square.SubscriptionCreateParams) (*sq.Subscription, error) {
	return f.sub, f.err
}

func (f *fakeSquareClient) CancelSubscription(context.Context, string) (*sq.Subscription, error) {
	return f.sub, f.err
}

func newTestSquare(t *testing.T, client SquareClient) *Square {
	t.Helper()
	gw, err := NewSquare(SquareParams{
		Client:          client,
		SignatureKey:    "sq_sig",
		NotificationURL: "https://api.pgwallah.in/api/v1/webhooks/square",
		CheckoutURL:     "https://checkout.pgwallah.in/square/",
		LocationID:      "L1",
	})
	require.NoError(t, err)
	return gw
}

func TestSquareOpenOrder(t *testing.T) {
	client := &fakeSquareClient{order: &square.Order{ID: "sq_order_1", State: "OPEN"}}
	gw := newTestSquare(t, client)
	intentID := uuid.New()

	order, err := gw.OpenOrder(context.Background(), OrderRequest{
		IntentID:   intentID,
		Amount:     decimal.RequireFromString("3000"),
		Currency:   "INR",
		ReceiptKey: "PG_rent_x",
		Purpose:    enums.PurposeRent,
	})
	require.NoError(t, err)
	assert.Equal(t, "sq_order_1", order.ExternalOrderID)
	assert.Equal(t, int64(300000), client.orderParams.Amount)
	assert.Equal(t, "L1", client.orderParams.LocationID)
	assert.Equal(t, "order-"+intentID.String(), client.orderParams.IdempotencyKey)
}

func TestSquareFetchPaymentPending(t *testing.T) {
	client := &fakeSquareClient{payment: &square.Payment{ID: "p1", Status: "PENDING"}}
	gw := newTestSquare(t, client)

	_, err := gw.FetchPayment(context.Background(), "p1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	client.payment = &square.Payment{ID: "p1", Status: "COMPLETED", OrderID: "o1", SourceType: "CARD", AmountMoney: square.Money{Amount: 300000, Currency: "INR"}}
	record, err := gw.FetchPayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, enums.GatewayPaymentCaptured, record.Status)
	assert.Equal(t, enums.PaymentMethodCard, record.Method)
	assert.Equal(t, "3000", record.Amount.String())
}

func TestSquareWebhookSignatureCoversURL(t *testing.T) {
	gw := newTestSquare(t, &fakeSquareClient{})
	body := []byte(`{"event_id":"e1"}`)
	good := SignBase64(append([]byte("https://api.pgwallah.in/api/v1/webhooks/square"), body...), "sq_sig")

	assert.True(t, gw.VerifyWebhookSignature(body, good))
	assert.False(t, gw.VerifyWebhookSignature(body, SignBase64(body, "sq_sig")))
}

func TestSquareBuildIntentHandle(t *testing.T) {
	gw := newTestSquare(t, &fakeSquareClient{})
	assert.Equal(t, "https://checkout.pgwallah.in/square/sq_order_1?amount=3000.00", gw.BuildIntentHandle("sq_order_1", decimal.NewFromInt(3000)))
}

func TestSquareParsePaymentUpdated(t *testing.T) {
	gw := newTestSquare(t, &fakeSquareClient{})
	body := `{"event_id":"evt_1","type":"payment.updated","data":{"type":"payment","id":"p1","object":{"payment":{"id":"p1","status":"APPROVED","order_id":"o1","source_type":"CARD","amount_money":{"amount":50000,"currency":"INR"}}}}}`

	event, err := gw.ParseWebhook([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, KindPayment, event.Kind)
	assert.Equal(t, "evt_1", event.EventID)
	assert.Equal(t, enums.GatewayPaymentAuthorized, event.Payment.Status)
	assert.Equal(t, "o1", event.Payment.ExternalOrderID)
}

func TestSquareParsePendingPaymentIsIgnored(t *testing.T) {
	gw := newTestSquare(t, &fakeSquareClient{})
	body := `{"event_id":"evt_2","type":"payment.created","data":{"object":{"payment":{"id":"p1","status":"PENDING"}}}}`

	event, err := gw.ParseWebhook([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestSquareParseRefundAndInvoice(t *testing.T) {
	gw := newTestSquare(t, &fakeSquareClient{})

	refundBody := `{"event_id":"evt_3","type":"refund.updated","data":{"object":{"refund":{"id":"r1","status":"COMPLETED","payment_id":"p1","amount_money":{"amount":1000,"currency":"INR"}}}}}`
	event, err := gw.ParseWebhook([]byte(refundBody))
	require.NoError(t, err)
	assert.Equal(t, KindRefund, event.Kind)
	assert.Equal(t, enums.RefundStatusProcessed, event.Refund.Status)
	assert.Equal(t, "10", event.Refund.Amount.String())

	invoiceBody := `{"event_id":"evt_4","type":"invoice.payment_made","data":{"object":{"invoice":{"id":"inv_1","subscription_id":"sub_1","status":"PAID","updated_at":"2026-03-01T10:00:00Z","payment_requests":[{"total_completed_amount_money":{"amount":650000,"currency":"INR"}}]}}}}`
	event, err = gw.ParseWebhook([]byte(invoiceBody))
	require.NoError(t, err)
	assert.Equal(t, KindSubscription, event.Kind)
	require.NotNil(t, event.Subscription.Charge)
	assert.Equal(t, "inv_1", event.Subscription.Charge.ExternalChargeID)
	assert.Equal(t, "6500", event.Subscription.Charge.Amount.String())

	_, err = gw.ParseWebhook([]byte(`{"type":"payment.updated"}`))
	assert.Error(t, err)
}

func TestSquareSDKSubscriptionConversion(t *testing.T) {
	id := "sub_1"
	status := sq.SubscriptionStatus("ACTIVE")
	record, err := squareSDKSubscription(&sq.Subscription{ID: &id, Status: &status}, 6)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", record.ExternalSubscriptionID)
	assert.Equal(t, enums.SubscriptionStatusActive, record.Status)
	require.NotNil(t, record.RemainingCount)
	assert.Equal(t, 6, *record.RemainingCount)
	assert.True(t, json.Valid(record.Raw))
}
