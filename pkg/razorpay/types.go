package razorpay

import (
	"encoding/json"
	"strings"
)

// OrderParams opens an order; Amount is in minor units (paise).
type OrderParams struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

func (p OrderParams) toRequest() map[string]any {
	req := map[string]any{
		"amount":          p.Amount,
		"currency":        strings.ToUpper(strings.TrimSpace(p.Currency)),
		"receipt":         p.Receipt,
		"payment_capture": 1,
	}
	if len(p.Notes) > 0 {
		req["notes"] = p.Notes
	}
	return req
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment is the subset of the payment entity used for reconciliation.
type Payment struct {
	ID          string            `json:"id"`
	OrderID     string            `json:"order_id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	Method      string            `json:"method"`
	Fee         int64             `json:"fee"`
	Tax         int64             `json:"tax"`
	Captured    bool              `json:"captured"`
	Description string            `json:"description"`
	InvoiceID   string            `json:"invoice_id"`
	CreatedAt   int64             `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

func (p *Payment) setRaw(raw json.RawMessage) { p.Raw = raw }

// RefundParams refunds Amount paise of PaymentID; zero refunds the balance.
type RefundParams struct {
	PaymentID string
	Amount    int64
	Notes     map[string]string
}

func (p RefundParams) toRequest() map[string]any {
	req := map[string]any{}
	if len(p.Notes) > 0 {
		req["notes"] = p.Notes
	}
	return req
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

func (r *Refund) setRaw(raw json.RawMessage) { r.Raw = raw }

type SubscriptionParams struct {
	PlanID         string
	TotalCount     int
	CustomerNotify bool
	StartAt        int64
	Notes          map[string]string
}

func (p SubscriptionParams) toRequest() map[string]any {
	notify := 0
	if p.CustomerNotify {
		notify = 1
	}
	req := map[string]any{
		"plan_id":         p.PlanID,
		"total_count":     p.TotalCount,
		"customer_notify": notify,
	}
	if p.StartAt > 0 {
		req["start_at"] = p.StartAt
	}
	if len(p.Notes) > 0 {
		req["notes"] = p.Notes
	}
	return req
}

// Subscription is the subscription entity as returned by the API and embedded
// in subscription.* webhooks.
type Subscription struct {
	ID             string `json:"id"`
	PlanID         string `json:"plan_id"`
	Status         string `json:"status"`
	TotalCount     *int   `json:"total_count"`
	PaidCount      int    `json:"paid_count"`
	RemainingCount *int   `json:"remaining_count"`
	CurrentStart   *int64 `json:"current_start"`
	CurrentEnd     *int64 `json:"current_end"`
	ChargeAt       *int64 `json:"charge_at"`
	StartAt        *int64 `json:"start_at"`
	EndAt          *int64 `json:"end_at"`
	ShortURL       string `json:"short_url"`
}
