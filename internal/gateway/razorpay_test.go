package gateway

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/razorpay"
)

type fakeRazorpayClient struct {
	orderParams razorpay.OrderParams
	order       *razorpay.Order
	payment     *razorpay.Payment
	refund      *razorpay.Refund
	sub         *razorpay.Subscription
	err         error
}

func (f *fakeRazorpayClient) CreateOrder(_ context.Context, params razorpay.OrderParams) (*razorpay.Order, error) {
	f.orderParams = params
	return f.order, f.err
}

func (f *fakeRazorpayClient) FetchPayment(context.Context, string) (*razorpay.Payment, error) {
	return f.payment, f.err
}

func (f *fakeRazorpayClient) RefundPayment(context.Context, razorpay.RefundParams) (*razorpay.Refund, error) {
	return f.refund, f.err
}

func (f *fakeRazorpayClient) CreateSubscription(context.Context, razorpay.SubscriptionParams) (*razorpay.Subscription, error) {
	return f.sub, f.err
}

func (f *fakeRazorpayClient) CancelSubscription(context.Context, string, bool) (*razorpay.Subscription, error) {
	return f.sub, f.err
}

func newTestRazorpay(t *testing.T, client RazorpayClient) *Razorpay {
	t.Helper()
	gw, err := NewRazorpay(RazorpayParams{
		Client:        client,
		KeySecret:     "key_secret",
		WebhookSecret: "whsec",
		UPIVPA:        "pgwallah@upi",
		PayeeName:     "PG Wallah",
		Metrics:       metrics.NewGatewayMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return gw
}

func TestRazorpayOpenOrderConvertsToPaise(t *testing.T) {
	client := &fakeRazorpayClient{order: &razorpay.Order{ID: "order_1", Amount: 50000, Currency: "INR", Status: "created"}}
	gw := newTestRazorpay(t, client)
	intentID := uuid.New()

	order, err := gw.OpenOrder(context.Background(), OrderRequest{
		IntentID:   intentID,
		Amount:     decimal.RequireFromString("500"),
		Currency:   "inr",
		ReceiptKey: "PG_rent_" + intentID.String(),
		Purpose:    enums.PurposeRent,
	})
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.ExternalOrderID)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("500")))
	assert.Equal(t, int64(50000), client.orderParams.Amount)
	assert.Equal(t, "INR", client.orderParams.Currency)
	assert.Equal(t, intentID.String(), client.orderParams.Notes["intent_id"])
}

func TestRazorpayOpenOrderRejectsSubPaise(t *testing.T) {
	gw := newTestRazorpay(t, &fakeRazorpayClient{})
	_, err := gw.OpenOrder(context.Background(), OrderRequest{Amount: decimal.RequireFromString("10.005"), Currency: "INR"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRazorpayOpenOrderPropagatesDependencyErrors(t *testing.T) {
	gw := newTestRazorpay(t, &fakeRazorpayClient{err: pkgerrors.New(pkgerrors.CodeDependency, "down")})
	_, err := gw.OpenOrder(context.Background(), OrderRequest{Amount: decimal.NewFromInt(1), Currency: "INR"})
	assert.True(t, pkgerrors.IsRetryable(err))
}

func TestRazorpayFetchPayment(t *testing.T) {
	client := &fakeRazorpayClient{payment: &razorpay.Payment{
		ID: "pay_1", OrderID: "order_1", Amount: 50000, Currency: "INR", Status: "captured", Method: "upi", Fee: 1180, Tax: 180,
	}}
	gw := newTestRazorpay(t, client)

	record, err := gw.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, enums.GatewayPaymentCaptured, record.Status)
	assert.Equal(t, enums.PaymentMethodUPI, record.Method)
	assert.Equal(t, "11.8", record.Fee.String())
	assert.Equal(t, "1.8", record.Tax.String())

	client.payment = &razorpay.Payment{ID: "pay_2", Status: "created"}
	_, err = gw.FetchPayment(context.Background(), "pay_2")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	client.payment = &razorpay.Payment{ID: "pay_3", Status: "unknown"}
	_, err = gw.FetchPayment(context.Background(), "pay_3")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	client.err = errors.New("boom")
	_, err = gw.FetchPayment(context.Background(), "pay_1")
	assert.Error(t, err)
}

func TestRazorpaySignatures(t *testing.T) {
	gw := newTestRazorpay(t, &fakeRazorpayClient{})
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, gw.VerifyWebhookSignature(body, SignHex(body, "whsec")))
	assert.False(t, gw.VerifyWebhookSignature(body, SignHex(body, "other")))
	assert.False(t, gw.VerifyWebhookSignature(body, ""))
	assert.False(t, gw.VerifyWebhookSignature([]byte(`{"event":"payment.failed"}`), SignHex(body, "whsec")))

	sig := SignHex([]byte("order_1|pay_1"), "key_secret")
	assert.True(t, gw.VerifyClientSignature("order_1", "pay_1", sig))
	assert.False(t, gw.VerifyClientSignature("order_1", "pay_2", sig))
}

func TestRazorpayWithoutWebhookSecretRejectsEverything(t *testing.T) {
	gw, err := NewRazorpay(RazorpayParams{Client: &fakeRazorpayClient{}, KeySecret: "k"})
	require.NoError(t, err)
	body := []byte(`{}`)
	assert.False(t, gw.VerifyWebhookSignature(body, SignHex(body, "")))
}

func TestRazorpayBuildIntentHandle(t *testing.T) {
	gw := newTestRazorpay(t, &fakeRazorpayClient{})
	handle := gw.BuildIntentHandle("order_1", decimal.RequireFromString("500"))
	require.True(t, strings.HasPrefix(handle, "upi://pay?"))

	parsed, err := url.ParseQuery(strings.TrimPrefix(handle, "upi://pay?"))
	require.NoError(t, err)
	assert.Equal(t, "pgwallah@upi", parsed.Get("pa"))
	assert.Equal(t, "PG Wallah", parsed.Get("pn"))
	assert.Equal(t, "order_1", parsed.Get("tr"))
	assert.Equal(t, "500.00", parsed.Get("am"))
	assert.Equal(t, "INR", parsed.Get("cu"))
}

func TestRazorpayRefund(t *testing.T) {
	client := &fakeRazorpayClient{refund: &razorpay.Refund{ID: "rfnd_1", PaymentID: "pay_1", Amount: 20000, Currency: "INR", Status: "processed"}}
	gw := newTestRazorpay(t, client)

	record, err := gw.Refund(context.Background(), RefundRequest{ExternalPaymentID: "pay_1", Amount: decimal.NewFromInt(200), Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusProcessed, record.Status)
	assert.True(t, record.Amount.Equal(decimal.NewFromInt(200)))
}

func TestRazorpaySubscriptionStatus(t *testing.T) {
	status, err := razorpaySubscriptionStatus("pending")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, status)

	status, err = razorpaySubscriptionStatus("expired")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCancelled, status)

	_, err = razorpaySubscriptionStatus("bogus")
	assert.Error(t, err)
}
