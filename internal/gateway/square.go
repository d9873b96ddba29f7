package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
	"github.com/pgwallah/pgwallah-backend/pkg/square"
)

const squareSignatureHeader = "X-Square-Hmacsha256-Signature"

// SquareClient is the slice of pkg/square the adapter needs.
type SquareClient interface {
	CreateOrder(ctx context.Context, params square.OrderCreateParams) (*square.Order, error)
	GetPayment(ctx context.Context, paymentID string) (*square.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*square.Refund, error)
	CreateSubscription(ctx context.Context, params square.SubscriptionCreateParams) (*sq.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*sq.Subscription, error)
}

type SquareParams struct {
	Client SquareClient
	// SignatureKey signs webhooks and hosted-checkout confirmations.
	SignatureKey    string
	NotificationURL string
	CheckoutURL     string
	LocationID      string
	Timeout         time.Duration
	Metrics         *metrics.GatewayMetrics
}

// Square opens orders paid through a hosted checkout page.
type Square struct {
	client          SquareClient
	signatureKey    string
	notificationURL string
	checkoutURL     string
	locationID      string
	call            caller
}

func NewSquare(params SquareParams) (*Square, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("square client required")
	}
	if strings.TrimSpace(params.CheckoutURL) == "" {
		return nil, fmt.Errorf("square checkout url required")
	}
	return &Square{
		client:          params.Client,
		signatureKey:    params.SignatureKey,
		notificationURL: params.NotificationURL,
		checkoutURL:     strings.TrimRight(params.CheckoutURL, "/"),
		locationID:      params.LocationID,
		call: caller{
			gateway: enums.GatewaySquare.String(),
			timeout: params.Timeout,
			metrics: params.Metrics,
		},
	}, nil
}

func (s *Square) Name() enums.GatewayName {
	return enums.GatewaySquare
}

func (s *Square) SignatureHeader() string {
	return squareSignatureHeader
}

func (s *Square) OpenOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	currency := strings.ToUpper(req.Currency)
	minor, err := money.ToMinorUnits(req.Amount, currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order amount")
	}
	metadata := map[string]string{"intent_id": req.IntentID.String(), "purpose": req.Purpose.String()}
	for k, v := range req.Notes {
		metadata[k] = v
	}

	var order *square.Order
	err = s.call.do(ctx, "open_order", func(ctx context.Context) error {
		var callErr error
		order, callErr = s.client.CreateOrder(ctx, square.OrderCreateParams{
			LocationID:     s.locationID,
			ReferenceID:    req.ReceiptKey,
			Name:           fmt.Sprintf("PG %s payment", req.Purpose),
			Amount:         minor,
			Currency:       currency,
			Metadata:       metadata,
			IdempotencyKey: "order-" + req.IntentID.String(),
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return &Order{
		ExternalOrderID: order.ID,
		Amount:          req.Amount,
		Currency:        currency,
		Status:          order.State,
	}, nil
}

func (s *Square) FetchPayment(ctx context.Context, externalPaymentID string) (*PaymentRecord, error) {
	var payment *square.Payment
	err := s.call.do(ctx, "fetch_payment", func(ctx context.Context) error {
		var callErr error
		payment, callErr = s.client.GetPayment(ctx, externalPaymentID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	record, ok := squarePaymentRecord(payment)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("square payment %s is not settled yet", externalPaymentID))
	}
	return record, nil
}

// VerifyWebhookSignature checks base64(HMAC-SHA256(notification_url + body)).
func (s *Square) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	payload := append([]byte(s.notificationURL), rawBody...)
	return equalSignature(SignBase64(payload, s.signatureKey), signature, s.signatureKey)
}

// VerifyClientSignature checks the confirmation the hosted checkout page signs
// with the same key: hex(HMAC-SHA256("order_id|payment_id")).
func (s *Square) VerifyClientSignature(orderID, paymentID, signature string) bool {
	return equalSignature(SignHex(ClientSignaturePayload(orderID, paymentID), s.signatureKey), signature, s.signatureKey)
}

// BuildIntentHandle returns the hosted checkout path for an order.
func (s *Square) BuildIntentHandle(orderID string, amount decimal.Decimal) string {
	q := url.Values{}
	q.Set("amount", amount.StringFixed(2))
	return fmt.Sprintf("%s/%s?%s", s.checkoutURL, url.PathEscape(orderID), q.Encode())
}

func (s *Square) Refund(ctx context.Context, req RefundRequest) (*RefundRecord, error) {
	currency := strings.ToUpper(req.Currency)
	minor, err := money.ToMinorUnits(req.Amount, currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund amount")
	}
	var refund *square.Refund
	err = s.call.do(ctx, "refund", func(ctx context.Context) error {
		var callErr error
		refund, callErr = s.client.RefundPayment(ctx, square.RefundCreateParams{
			PaymentID:      req.ExternalPaymentID,
			Amount:         minor,
			Currency:       currency,
			Reason:         req.Reason,
			IdempotencyKey: req.IdempotencyKey,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return squareRefundRecord(refund), nil
}

func (s *Square) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionRecord, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square subscriptions require a customer id")
	}
	params := square.SubscriptionCreateParams{
		LocationID:      s.locationID,
		PlanVariationID: req.PlanID,
		CustomerID:      req.CustomerID,
		CardID:          req.CardID,
	}
	if req.StartAt != nil {
		params.StartDate = req.StartAt.UTC().Format("2006-01-02")
	}
	var sub *sq.Subscription
	err := s.call.do(ctx, "create_subscription", func(ctx context.Context) error {
		var callErr error
		sub, callErr = s.client.CreateSubscription(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return squareSDKSubscription(sub, req.TotalCount)
}

// CancelSubscription always cancels at the end of the billing period; Square
// has no immediate cancellation.
func (s *Square) CancelSubscription(ctx context.Context, externalSubscriptionID string, _ bool) (*SubscriptionRecord, error) {
	var sub *sq.Subscription
	err := s.call.do(ctx, "cancel_subscription", func(ctx context.Context) error {
		var callErr error
		sub, callErr = s.client.CancelSubscription(ctx, externalSubscriptionID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return squareSDKSubscription(sub, 0)
}

// squarePaymentRecord returns false for payments that are still PENDING.
func squarePaymentRecord(p *square.Payment) (*PaymentRecord, bool) {
	if p == nil || p.ID == "" {
		return nil, false
	}
	status, ok := squarePaymentStatus(p.Status)
	if !ok {
		return nil, false
	}
	currency := strings.ToUpper(p.AmountMoney.Currency)
	return &PaymentRecord{
		ExternalPaymentID: p.ID,
		ExternalOrderID:   p.OrderID,
		Amount:            money.FromMinorUnits(p.AmountMoney.Amount, currency),
		Currency:          currency,
		Status:            status,
		Method:            enums.NormalizePaymentMethod(p.SourceType),
		Fee:               money.FromMinorUnits(p.Fee(), currency),
		Tax:               decimal.Zero,
		ReceiptURL:        p.ReceiptURL,
		Raw:               p.Raw,
	}, true
}

func squarePaymentStatus(status string) (enums.GatewayPaymentStatus, bool) {
	switch strings.ToUpper(status) {
	case "APPROVED":
		return enums.GatewayPaymentAuthorized, true
	case "COMPLETED":
		return enums.GatewayPaymentCaptured, true
	case "FAILED", "CANCELED":
		return enums.GatewayPaymentFailed, true
	default:
		return "", false
	}
}

func squareRefundRecord(r *square.Refund) *RefundRecord {
	currency := strings.ToUpper(r.AmountMoney.Currency)
	return &RefundRecord{
		ExternalRefundID:  r.ID,
		ExternalPaymentID: r.PaymentID,
		Amount:            money.FromMinorUnits(r.AmountMoney.Amount, currency),
		Currency:          currency,
		Status:            squareRefundStatus(r.Status),
		Reason:            r.Reason,
		Raw:               r.Raw,
	}
}

func squareRefundStatus(status string) enums.RefundStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return enums.RefundStatusProcessed
	case "REJECTED", "FAILED":
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}

type squareSubscription struct {
	ID                 string `json:"id"`
	PlanVariationID    string `json:"plan_variation_id"`
	Status             string `json:"status"`
	StartDate          string `json:"start_date"`
	ChargedThroughDate string `json:"charged_through_date"`
	CanceledDate       string `json:"canceled_date"`
}

func squareSDKSubscription(sub *sq.Subscription, totalCount int) (*SubscriptionRecord, error) {
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square subscription missing")
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encode square subscription")
	}
	var decoded squareSubscription
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode square subscription")
	}
	record := squareSubscriptionRecord(decoded)
	if totalCount > 0 {
		record.TotalCount = &totalCount
		remaining := totalCount
		record.RemainingCount = &remaining
	}
	record.Raw = raw
	return record, nil
}

func squareSubscriptionRecord(s squareSubscription) *SubscriptionRecord {
	record := &SubscriptionRecord{
		ExternalSubscriptionID: s.ID,
		PlanID:                 s.PlanVariationID,
		Status:                 squareSubscriptionStatus(s.Status),
		StartAt:                squareDate(s.StartDate),
		CurrentEnd:             squareDate(s.ChargedThroughDate),
		EndAt:                  squareDate(s.CanceledDate),
	}
	return record
}

func squareSubscriptionStatus(status string) enums.SubscriptionStatus {
	switch strings.ToUpper(status) {
	case "ACTIVE":
		return enums.SubscriptionStatusActive
	case "PAUSED":
		return enums.SubscriptionStatusPaused
	case "CANCELED":
		return enums.SubscriptionStatusCancelled
	case "DEACTIVATED":
		return enums.SubscriptionStatusHalted
	default:
		return enums.SubscriptionStatusCreated
	}
}

func squareDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}
