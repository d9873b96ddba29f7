package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
	"github.com/pgwallah/pgwallah-backend/pkg/razorpay"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// RazorpayClient is the slice of pkg/razorpay the adapter needs.
type RazorpayClient interface {
	CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	RefundPayment(ctx context.Context, params razorpay.RefundParams) (*razorpay.Refund, error)
	CreateSubscription(ctx context.Context, params razorpay.SubscriptionParams) (*razorpay.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) (*razorpay.Subscription, error)
}

type RazorpayParams struct {
	Client        RazorpayClient
	KeySecret     string
	WebhookSecret string
	UPIVPA        string
	PayeeName     string
	Timeout       time.Duration
	Metrics       *metrics.GatewayMetrics
}

// Razorpay opens orders whose client handle is a UPI deep link.
type Razorpay struct {
	client        RazorpayClient
	keySecret     string
	webhookSecret string
	vpa           string
	payee         string
	call          caller
}

func NewRazorpay(params RazorpayParams) (*Razorpay, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("razorpay client required")
	}
	if strings.TrimSpace(params.KeySecret) == "" {
		return nil, fmt.Errorf("razorpay key secret required")
	}
	return &Razorpay{
		client:        params.Client,
		keySecret:     params.KeySecret,
		webhookSecret: params.WebhookSecret,
		vpa:           params.UPIVPA,
		payee:         params.PayeeName,
		call: caller{
			gateway: enums.GatewayRazorpay.String(),
			timeout: params.Timeout,
			metrics: params.Metrics,
		},
	}, nil
}

func (r *Razorpay) Name() enums.GatewayName {
	return enums.GatewayRazorpay
}

func (r *Razorpay) SignatureHeader() string {
	return razorpaySignatureHeader
}

func (r *Razorpay) OpenOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	currency := strings.ToUpper(req.Currency)
	minor, err := money.ToMinorUnits(req.Amount, currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order amount")
	}
	notes := map[string]string{"intent_id": req.IntentID.String(), "purpose": req.Purpose.String()}
	for k, v := range req.Notes {
		notes[k] = v
	}

	var order *razorpay.Order
	err = r.call.do(ctx, "open_order", func(ctx context.Context) error {
		var callErr error
		order, callErr = r.client.CreateOrder(ctx, razorpay.OrderParams{
			Amount:   minor,
			Currency: currency,
			Receipt:  req.ReceiptKey,
			Notes:    notes,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return &Order{
		ExternalOrderID: order.ID,
		Amount:          money.FromMinorUnits(order.Amount, order.Currency),
		Currency:        order.Currency,
		Status:          order.Status,
	}, nil
}

func (r *Razorpay) FetchPayment(ctx context.Context, externalPaymentID string) (*PaymentRecord, error) {
	var payment *razorpay.Payment
	err := r.call.do(ctx, "fetch_payment", func(ctx context.Context) error {
		var callErr error
		payment, callErr = r.client.FetchPayment(ctx, externalPaymentID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return razorpayPaymentRecord(payment)
}

func (r *Razorpay) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return equalSignature(SignHex(rawBody, r.webhookSecret), signature, r.webhookSecret)
}

// VerifyClientSignature checks HMAC-SHA256("order_id|payment_id", key_secret).
func (r *Razorpay) VerifyClientSignature(orderID, paymentID, signature string) bool {
	return equalSignature(SignHex(ClientSignaturePayload(orderID, paymentID), r.keySecret), signature, r.keySecret)
}

// BuildIntentHandle returns the UPI deep link the tenant's app opens.
func (r *Razorpay) BuildIntentHandle(orderID string, amount decimal.Decimal) string {
	q := url.Values{}
	q.Set("pa", r.vpa)
	q.Set("pn", r.payee)
	q.Set("tr", orderID)
	q.Set("am", amount.StringFixed(2))
	q.Set("cu", "INR")
	q.Set("tn", "PG payment "+orderID)
	return "upi://pay?" + q.Encode()
}

func (r *Razorpay) Refund(ctx context.Context, req RefundRequest) (*RefundRecord, error) {
	minor, err := money.ToMinorUnits(req.Amount, req.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund amount")
	}
	notes := map[string]string{}
	for k, v := range req.Notes {
		notes[k] = v
	}
	if req.Reason != "" {
		notes["reason"] = req.Reason
	}

	var refund *razorpay.Refund
	err = r.call.do(ctx, "refund", func(ctx context.Context) error {
		var callErr error
		refund, callErr = r.client.RefundPayment(ctx, razorpay.RefundParams{
			PaymentID: req.ExternalPaymentID,
			Amount:    minor,
			Notes:     notes,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	currency := refund.Currency
	if currency == "" {
		currency = req.Currency
	}
	return &RefundRecord{
		ExternalRefundID:  refund.ID,
		ExternalPaymentID: refund.PaymentID,
		Amount:            money.FromMinorUnits(refund.Amount, currency),
		Currency:          strings.ToUpper(currency),
		Status:            razorpayRefundStatus(refund.Status),
		Reason:            req.Reason,
		Raw:               refund.Raw,
	}, nil
}

func (r *Razorpay) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionRecord, error) {
	params := razorpay.SubscriptionParams{
		PlanID:         req.PlanID,
		TotalCount:     req.TotalCount,
		CustomerNotify: true,
		Notes:          req.Notes,
	}
	if req.StartAt != nil {
		params.StartAt = req.StartAt.Unix()
	}
	var sub *razorpay.Subscription
	err := r.call.do(ctx, "create_subscription", func(ctx context.Context) error {
		var callErr error
		sub, callErr = r.client.CreateSubscription(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return razorpaySubscriptionRecord(sub)
}

func (r *Razorpay) CancelSubscription(ctx context.Context, externalSubscriptionID string, atCycleEnd bool) (*SubscriptionRecord, error) {
	var sub *razorpay.Subscription
	err := r.call.do(ctx, "cancel_subscription", func(ctx context.Context) error {
		var callErr error
		sub, callErr = r.client.CancelSubscription(ctx, externalSubscriptionID, atCycleEnd)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return razorpaySubscriptionRecord(sub)
}

func razorpayPaymentRecord(p *razorpay.Payment) (*PaymentRecord, error) {
	if p == nil || p.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay payment missing id")
	}
	// The customer has not finished paying; asking again later can succeed.
	if strings.EqualFold(p.Status, "created") {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("razorpay payment %s is not completed yet", p.ID))
	}
	status, ok := razorpayPaymentStatus(p.Status)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported razorpay payment status %q", p.Status))
	}
	currency := strings.ToUpper(p.Currency)
	return &PaymentRecord{
		ExternalPaymentID: p.ID,
		ExternalOrderID:   p.OrderID,
		Amount:            money.FromMinorUnits(p.Amount, currency),
		Currency:          currency,
		Status:            status,
		Method:            enums.NormalizePaymentMethod(p.Method),
		Fee:               money.FromMinorUnits(p.Fee, currency),
		Tax:               money.FromMinorUnits(p.Tax, currency),
		Raw:               p.Raw,
	}, nil
}

// razorpayPaymentStatus maps entity states. A "refunded" payment was captured
// first, so it reports as captured.
func razorpayPaymentStatus(status string) (enums.GatewayPaymentStatus, bool) {
	switch strings.ToLower(status) {
	case "authorized":
		return enums.GatewayPaymentAuthorized, true
	case "captured", "refunded":
		return enums.GatewayPaymentCaptured, true
	case "failed":
		return enums.GatewayPaymentFailed, true
	default:
		return "", false
	}
}

func razorpayRefundStatus(status string) enums.RefundStatus {
	switch strings.ToLower(status) {
	case "processed":
		return enums.RefundStatusProcessed
	case "failed":
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}

func razorpaySubscriptionRecord(s *razorpay.Subscription) (*SubscriptionRecord, error) {
	if s == nil || s.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay subscription missing id")
	}
	status, err := razorpaySubscriptionStatus(s.Status)
	if err != nil {
		return nil, err
	}
	return &SubscriptionRecord{
		ExternalSubscriptionID: s.ID,
		PlanID:                 s.PlanID,
		Status:                 status,
		TotalCount:             s.TotalCount,
		PaidCount:              s.PaidCount,
		RemainingCount:         s.RemainingCount,
		StartAt:                unixTime(s.StartAt),
		EndAt:                  unixTime(s.EndAt),
		CurrentStart:           unixTime(s.CurrentStart),
		CurrentEnd:             unixTime(s.CurrentEnd),
		ChargeAt:               unixTime(s.ChargeAt),
		ShortURL:               s.ShortURL,
	}, nil
}

func unixTime(ts *int64) *time.Time {
	if ts == nil || *ts <= 0 {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}

// razorpaySubscriptionStatus folds Razorpay's dunning and expiry states onto
// the closed subscription lifecycle.
func razorpaySubscriptionStatus(raw string) (enums.SubscriptionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return enums.SubscriptionStatusActive, nil
	case "expired":
		return enums.SubscriptionStatusCancelled, nil
	}
	status, err := enums.ParseSubscriptionStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported razorpay subscription status")
	}
	return status, nil
}
