package razorpay

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type fakeAPI struct {
	orderReq   map[string]any
	refundAmt  int
	cancelData map[string]any
	response   map[string]any
	err        error
	block      chan struct{}
}

func (f *fakeAPI) createOrder(data map[string]any) (map[string]any, error) {
	f.orderReq = data
	return f.response, f.err
}

func (f *fakeAPI) fetchPayment(string) (map[string]any, error) {
	if f.block != nil {
		<-f.block
	}
	return f.response, f.err
}

func (f *fakeAPI) refundPayment(_ string, amount int, _ map[string]any) (map[string]any, error) {
	f.refundAmt = amount
	return f.response, f.err
}

func (f *fakeAPI) createSubscription(map[string]any) (map[string]any, error) {
	return f.response, f.err
}

func (f *fakeAPI) cancelSubscription(_ string, data map[string]any) (map[string]any, error) {
	f.cancelData = data
	return f.response, f.err
}

func testClient(api api) *Client {
	return &Client{
		api:       api,
		keyID:     "rzp_test_key",
		keySecret: "secret",
		logger:    logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	}
}

func TestCreateOrderSendsMinorUnits(t *testing.T) {
	api := &fakeAPI{response: map[string]any{
		"id":       "order_9A33XWu170gUtm",
		"amount":   float64(50000),
		"currency": "INR",
		"receipt":  "PG_rent_123",
		"status":   "created",
	}}
	c := testClient(api)

	order, err := c.CreateOrder(context.Background(), OrderParams{
		Amount:   50000,
		Currency: "inr",
		Receipt:  "PG_rent_123",
		Notes:    map[string]string{"tenant_id": "t-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_9A33XWu170gUtm", order.ID)
	assert.Equal(t, int64(50000), order.Amount)
	assert.Equal(t, int64(50000), api.orderReq["amount"])
	assert.Equal(t, "INR", api.orderReq["currency"])
	assert.Equal(t, 1, api.orderReq["payment_capture"])
	assert.Equal(t, map[string]string{"tenant_id": "t-1"}, api.orderReq["notes"])
}

func TestFetchPaymentKeepsRawBody(t *testing.T) {
	api := &fakeAPI{response: map[string]any{
		"id":       "pay_29QQoUBi66xm2f",
		"order_id": "order_9A33XWu170gUtm",
		"amount":   float64(50000),
		"currency": "INR",
		"status":   "captured",
		"method":   "upi",
		"fee":      float64(1180),
		"tax":      float64(180),
		"notes":    []any{},
	}}
	c := testClient(api)

	payment, err := c.FetchPayment(context.Background(), "pay_29QQoUBi66xm2f")
	require.NoError(t, err)
	assert.Equal(t, "captured", payment.Status)
	assert.Equal(t, int64(1180), payment.Fee)
	assert.Contains(t, string(payment.Raw), `"order_id":"order_9A33XWu170gUtm"`)

	_, err = c.FetchPayment(context.Background(), " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFetchPaymentHonoursContextDeadline(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	defer close(api.block)
	c := testClient(api)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.FetchPayment(ctx, "pay_1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayTimeout))
	assert.True(t, pkgerrors.IsRetryable(err))
}

func TestRefundAndCancel(t *testing.T) {
	api := &fakeAPI{response: map[string]any{"id": "rfnd_1", "payment_id": "pay_1", "amount": float64(2500), "status": "processed"}}
	c := testClient(api)

	refund, err := c.RefundPayment(context.Background(), RefundParams{PaymentID: "pay_1", Amount: 2500})
	require.NoError(t, err)
	assert.Equal(t, 2500, api.refundAmt)
	assert.Equal(t, "rfnd_1", refund.ID)

	api.response = map[string]any{"id": "sub_1", "status": "cancelled", "paid_count": float64(2)}
	sub, err := c.CancelSubscription(context.Background(), "sub_1", true)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", sub.Status)
	assert.Equal(t, 2, sub.PaidCount)
	assert.Equal(t, 1, api.cancelData["cancel_at_cycle_end"])
}

func TestMapError(t *testing.T) {
	cases := []struct {
		msg  string
		code pkgerrors.Code
	}{
		{"The id provided does not exist", pkgerrors.CodeNotFound},
		{"Authentication failed", pkgerrors.CodeUnauthorized},
		{"BAD_REQUEST_ERROR: amount must be atleast INR 1.00", pkgerrors.CodeValidation},
		{"net/http: request canceled (Client.Timeout exceeded) timeout", pkgerrors.CodeGatewayTimeout},
		{"connection reset by peer", pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		err := mapError(errors.New(tc.msg), "fetch payment")
		assert.Equal(t, tc.code, pkgerrors.CodeOf(err), tc.msg)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Empty(t, c.KeySecret())
	_, err := c.FetchPayment(context.Background(), "pay_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
