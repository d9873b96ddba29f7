package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// Payment is the record of one external gateway payment applied to an intent.
// Rows are immutable apart from the authorized to captured upgrade and the
// receipt backfill columns.
type Payment struct {
	ID                uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalPaymentID string                     `gorm:"column:external_payment_id;not null;uniqueIndex:ux_payments_external_payment_id"`
	ExternalOrderID   string                     `gorm:"column:external_order_id;not null;index"`
	IntentID          uuid.UUID                  `gorm:"column:intent_id;type:uuid;not null;index"`
	TenantID          uuid.UUID                  `gorm:"column:tenant_id;type:uuid;not null;index"`
	Gateway           enums.GatewayName          `gorm:"column:gateway;type:text;not null"`
	Amount            decimal.Decimal            `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency          string                     `gorm:"column:currency;type:varchar(3);not null"`
	Status            enums.GatewayPaymentStatus `gorm:"column:status;type:text;not null"`
	Method            enums.PaymentMethod        `gorm:"column:method;type:text;not null;default:'other'"`
	Fee               decimal.Decimal            `gorm:"column:fee;type:numeric(14,2);not null;default:0"`
	Tax               decimal.Decimal            `gorm:"column:tax;type:numeric(14,2);not null;default:0"`
	RawPayload        json.RawMessage            `gorm:"column:raw_payload;type:jsonb"`
	ReceiptURL        *string                    `gorm:"column:receipt_url"`
	ReceiptAttempts   int                        `gorm:"column:receipt_attempts;not null;default:0"`
	ReceiptError      *string                    `gorm:"column:receipt_error"`
	ProcessedAt       time.Time                  `gorm:"column:processed_at;not null"`
	CreatedAt         time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	ensureJSON(&p.RawPayload)
	return nil
}
