package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/pgwallah/pgwallah-backend/pkg/config"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

var (
	errCredentialsRequired = errors.New("razorpay key id and secret are required")
	errLoggerRequired      = errors.New("razorpay logger is required")
)

// api is the slice of the SDK the billing services call. The SDK speaks
// untyped maps and takes no context, so Client adds both.
type api interface {
	createOrder(data map[string]any) (map[string]any, error)
	fetchPayment(paymentID string) (map[string]any, error)
	refundPayment(paymentID string, amount int, data map[string]any) (map[string]any, error)
	createSubscription(data map[string]any) (map[string]any, error)
	cancelSubscription(subscriptionID string, data map[string]any) (map[string]any, error)
}

// Client exposes typed Razorpay primitives with logging and error mapping.
type Client struct {
	api           api
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if !cfg.Enabled() {
		return nil, errCredentialsRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)

	c := &Client{
		api:           sdkAPI{sdk: rzp.NewClient(keyID, keySecret)},
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}
	logg.Info(logg.WithField(ctx, "key_id", keyID), "razorpay client initialized")
	return c, nil
}

// KeyID is the public key handed to checkout clients.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret signs client-side payment confirmations.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// WebhookSecret signs webhook deliveries.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	c.log(ctx, "request", "create_order", map[string]any{"receipt": params.Receipt, "amount": params.Amount})
	var order Order
	err := c.call(ctx, "create order", &order, func() (map[string]any, error) {
		return c.api.createOrder(params.toRequest())
	})
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}
	c.log(ctx, "response", "create_order", map[string]any{"order_id": order.ID, "status": order.Status})
	return &order, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	c.log(ctx, "request", "fetch_payment", map[string]any{"payment_id": paymentID})
	var payment Payment
	err := c.call(ctx, "fetch payment", &payment, func() (map[string]any, error) {
		return c.api.fetchPayment(paymentID)
	})
	if err != nil {
		c.log(ctx, "error", "fetch_payment", map[string]any{"error": err.Error()})
		return nil, err
	}
	c.log(ctx, "response", "fetch_payment", map[string]any{"payment_id": payment.ID, "status": payment.Status})
	return &payment, nil
}

func (c *Client) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	c.log(ctx, "request", "refund_payment", map[string]any{"payment_id": params.PaymentID, "amount": params.Amount})
	var refund Refund
	err := c.call(ctx, "refund payment", &refund, func() (map[string]any, error) {
		return c.api.refundPayment(params.PaymentID, int(params.Amount), params.toRequest())
	})
	if err != nil {
		c.log(ctx, "error", "refund_payment", map[string]any{"error": err.Error()})
		return nil, err
	}
	c.log(ctx, "response", "refund_payment", map[string]any{"refund_id": refund.ID, "status": refund.Status})
	return &refund, nil
}

func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error) {
	c.log(ctx, "request", "create_subscription", map[string]any{"plan_id": params.PlanID, "total_count": params.TotalCount})
	var sub Subscription
	err := c.call(ctx, "create subscription", &sub, func() (map[string]any, error) {
		return c.api.createSubscription(params.toRequest())
	})
	if err != nil {
		c.log(ctx, "error", "create_subscription", map[string]any{"error": err.Error()})
		return nil, err
	}
	c.log(ctx, "response", "create_subscription", map[string]any{"subscription_id": sub.ID, "status": sub.Status})
	return &sub, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) (*Subscription, error) {
	c.log(ctx, "request", "cancel_subscription", map[string]any{"subscription_id": subscriptionID})
	data := map[string]any{}
	if atCycleEnd {
		data["cancel_at_cycle_end"] = 1
	}
	var sub Subscription
	err := c.call(ctx, "cancel subscription", &sub, func() (map[string]any, error) {
		return c.api.cancelSubscription(subscriptionID, data)
	})
	if err != nil {
		c.log(ctx, "error", "cancel_subscription", map[string]any{"error": err.Error()})
		return nil, err
	}
	c.log(ctx, "response", "cancel_subscription", map[string]any{"subscription_id": sub.ID, "status": sub.Status})
	return &sub, nil
}

type callResult struct {
	body map[string]any
	err  error
}

// call runs fn in the background so ctx cancellation bounds the request even
// though the SDK itself blocks until its HTTP client returns.
func (c *Client) call(ctx context.Context, op string, out any, fn func() (map[string]any, error)) error {
	if c == nil || c.api == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not initialized")
	}
	done := make(chan callResult, 1)
	go func() {
		body, err := fn()
		done <- callResult{body: body, err: err}
	}()

	var res callResult
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, ctx.Err(), fmt.Sprintf("razorpay %s timed out", op))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), fmt.Sprintf("razorpay %s cancelled", op))
	case res = <-done:
	}
	if res.err != nil {
		return mapError(res.err, op)
	}
	return decode(res.body, out)
}

func decode(body map[string]any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encode razorpay response")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode razorpay response")
	}
	if setter, ok := out.(interface{ setRaw(json.RawMessage) }); ok {
		setter.setRaw(raw)
	}
	return nil
}

// mapError classifies SDK failures. The SDK reports 4xx bodies with a
// BAD_REQUEST prefix; everything else is treated as a gateway outage.
func mapError(err error, op string) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found"):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("razorpay %s failed", op))
	case strings.Contains(msg, "authentication failed"):
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, fmt.Sprintf("razorpay %s failed", op))
	case strings.Contains(msg, "bad_request") || strings.Contains(msg, "bad request"):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("razorpay %s failed", op))
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, fmt.Sprintf("razorpay %s timed out", op))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("razorpay %s failed", op))
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
		"gateway":   "razorpay",
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "vpa", "secret", "email", "contact", "token"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

type sdkAPI struct {
	sdk *rzp.Client
}

func (s sdkAPI) createOrder(data map[string]any) (map[string]any, error) {
	return s.sdk.Order.Create(data, nil)
}

func (s sdkAPI) fetchPayment(paymentID string) (map[string]any, error) {
	return s.sdk.Payment.Fetch(paymentID, nil, nil)
}

func (s sdkAPI) refundPayment(paymentID string, amount int, data map[string]any) (map[string]any, error) {
	return s.sdk.Payment.Refund(paymentID, amount, data, nil)
}

func (s sdkAPI) createSubscription(data map[string]any) (map[string]any, error) {
	return s.sdk.Subscription.Create(data, nil)
}

func (s sdkAPI) cancelSubscription(subscriptionID string, data map[string]any) (map[string]any, error) {
	return s.sdk.Subscription.Cancel(subscriptionID, data, nil)
}
