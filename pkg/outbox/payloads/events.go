package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// PaymentSucceededEvent is emitted once per captured payment.
type PaymentSucceededEvent struct {
	IntentID            uuid.UUID            `json:"intent_id"`
	PaymentID           uuid.UUID            `json:"payment_id"`
	TenantID            uuid.UUID            `json:"tenant_id"`
	Gateway             enums.GatewayName    `json:"gateway"`
	ExternalOrderID     string               `json:"external_order_id"`
	ExternalPaymentID   string               `json:"external_payment_id"`
	Amount              decimal.Decimal      `json:"amount"`
	Currency            string               `json:"currency"`
	Purpose             enums.PaymentPurpose `json:"purpose"`
	Method              enums.PaymentMethod  `json:"method"`
	LedgerTransactionID string               `json:"ledger_transaction_id"`
	CapturedAt          time.Time            `json:"captured_at"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed attempt.
type PaymentFailedEvent struct {
	IntentID          uuid.UUID            `json:"intent_id"`
	TenantID          uuid.UUID            `json:"tenant_id"`
	Gateway           enums.GatewayName    `json:"gateway"`
	ExternalOrderID   string               `json:"external_order_id"`
	ExternalPaymentID string               `json:"external_payment_id,omitempty"`
	Amount            decimal.Decimal      `json:"amount"`
	Currency          string               `json:"currency"`
	Purpose           enums.PaymentPurpose `json:"purpose"`
	Reason            string               `json:"reason,omitempty"`
}

// PaymentRefundedEvent is emitted for each processed refund.
type PaymentRefundedEvent struct {
	IntentID            uuid.UUID          `json:"intent_id"`
	PaymentID           uuid.UUID          `json:"payment_id"`
	RefundID            uuid.UUID          `json:"refund_id"`
	TenantID            uuid.UUID          `json:"tenant_id"`
	ExternalRefundID    string             `json:"external_refund_id"`
	Amount              decimal.Decimal    `json:"amount"`
	Currency            string             `json:"currency"`
	RefundedTotal       decimal.Decimal    `json:"refunded_total"`
	IntentStatus        enums.IntentStatus `json:"intent_status"`
	LedgerTransactionID string             `json:"ledger_transaction_id"`
}

// RentPaymentRecordedEvent is emitted by the no-gateway rent flow.
type RentPaymentRecordedEvent struct {
	RentPaymentID       uuid.UUID       `json:"rent_payment_id"`
	IntentID            uuid.UUID       `json:"intent_id"`
	PaymentID           uuid.UUID       `json:"payment_id"`
	TenantID            uuid.UUID       `json:"tenant_id"`
	RoomNo              string          `json:"room_no"`
	Amount              decimal.Decimal `json:"amount"`
	LedgerTransactionID string          `json:"ledger_transaction_id"`
	PaymentDate         time.Time       `json:"payment_date"`
}

// AdvancePaymentRecordedEvent is emitted by the no-gateway advance flow.
type AdvancePaymentRecordedEvent struct {
	AdvancePaymentID    uuid.UUID       `json:"advance_payment_id"`
	IntentID            uuid.UUID       `json:"intent_id"`
	PaymentID           uuid.UUID       `json:"payment_id"`
	TenantID            uuid.UUID       `json:"tenant_id"`
	PGID                uuid.UUID       `json:"pg_id"`
	Amount              decimal.Decimal `json:"amount"`
	LedgerTransactionID string          `json:"ledger_transaction_id"`
	PaymentDate         time.Time       `json:"payment_date"`
}

// SubscriptionChargedEvent is emitted once per unique recurring charge.
type SubscriptionChargedEvent struct {
	SubscriptionID         uuid.UUID       `json:"subscription_id"`
	ChargeID               uuid.UUID       `json:"charge_id"`
	TenantID               uuid.UUID       `json:"tenant_id"`
	ExternalSubscriptionID string          `json:"external_subscription_id"`
	ExternalChargeID       string          `json:"external_charge_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	PaidCount              int             `json:"paid_count"`
	RemainingCount         *int            `json:"remaining_count,omitempty"`
	LedgerTransactionID    string          `json:"ledger_transaction_id"`
}

// SubscriptionStatusChangedEvent is emitted on every accepted status move.
type SubscriptionStatusChangedEvent struct {
	SubscriptionID         uuid.UUID                `json:"subscription_id"`
	TenantID               uuid.UUID                `json:"tenant_id"`
	ExternalSubscriptionID string                   `json:"external_subscription_id"`
	From                   enums.SubscriptionStatus `json:"from"`
	To                     enums.SubscriptionStatus `json:"to"`
}
