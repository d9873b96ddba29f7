package square

import (
	"encoding/json"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// OrderCreateParams opens a single-line order; Amount is in minor units.
type OrderCreateParams struct {
	LocationID     string
	ReferenceID    string
	Name           string
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

func (p OrderCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateOrderRequest {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "PG payment"
	}
	order := &sq.Order{
		LocationID: p.LocationID,
		LineItems: []*sq.OrderLineItem{{
			Name:           ptrString(name),
			Quantity:       "1",
			BasePriceMoney: moneyPtr(p.Amount, p.Currency),
		}},
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		order.ReferenceID = ptrString(trimmed)
	}
	if len(p.Metadata) > 0 {
		order.Metadata = make(map[string]*string, len(p.Metadata))
		for k, v := range p.Metadata {
			value := v
			order.Metadata[k] = &value
		}
	}
	return &sq.CreateOrderRequest{
		Order:          order,
		IdempotencyKey: ptrString(idempotencyKey),
	}
}

// RefundCreateParams refunds Amount minor units of a completed payment.
type RefundCreateParams struct {
	PaymentID      string
	Amount         int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundCreateParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.Amount, p.Currency),
		PaymentID:      ptrString(p.PaymentID),
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

// SubscriptionCreateParams contains the fields required to start a Square subscription.
type SubscriptionCreateParams struct {
	LocationID      string
	PlanVariationID string
	CustomerID      string
	CardID          string
	IdempotencyKey  string
	StartDate       string
}

func (p SubscriptionCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateSubscriptionRequest {
	req := &sq.CreateSubscriptionRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		LocationID:     p.LocationID,
		CustomerID:     p.CustomerID,
	}
	if trimmed := strings.TrimSpace(p.PlanVariationID); trimmed != "" {
		req.PlanVariationID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.CardID); trimmed != "" {
		req.CardID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.StartDate); trimmed != "" {
		req.StartDate = ptrString(trimmed)
	}
	return req
}

// Money mirrors the Square money object in minor units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Payment is the subset of the Square payment object used for reconciliation.
type Payment struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	OrderID        string `json:"order_id"`
	ReferenceID    string `json:"reference_id"`
	SourceType     string `json:"source_type"`
	ReceiptURL     string `json:"receipt_url"`
	AmountMoney    Money  `json:"amount_money"`
	ProcessingFees []struct {
		AmountMoney Money `json:"amount_money"`
	} `json:"processing_fee"`
	CreatedAt string `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

// Fee sums the processing fees Square reported so far.
func (p Payment) Fee() int64 {
	var total int64
	for _, fee := range p.ProcessingFees {
		total += fee.AmountMoney.Amount
	}
	return total
}

// Refund is the subset of the Square payment refund object.
type Refund struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	Reason      string `json:"reason"`
	AmountMoney Money  `json:"amount_money"`
	CreatedAt   string `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

type Order struct {
	ID          string `json:"id"`
	LocationID  string `json:"location_id"`
	ReferenceID string `json:"reference_id"`
	State       string `json:"state"`
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "INR"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
