package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// Refund is a gateway refund against a captured payment.
type Refund struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalRefundID string             `gorm:"column:external_refund_id;not null;uniqueIndex:ux_refunds_external_refund_id"`
	PaymentID        uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;index"`
	IntentID         uuid.UUID          `gorm:"column:intent_id;type:uuid;not null;index"`
	TenantID         uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null"`
	Amount           decimal.Decimal    `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency         string             `gorm:"column:currency;type:varchar(3);not null"`
	Reason           *string            `gorm:"column:reason"`
	Status           enums.RefundStatus `gorm:"column:status;type:text;not null"`
	RawPayload       json.RawMessage    `gorm:"column:raw_payload;type:jsonb"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (r *Refund) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	ensureJSON(&r.RawPayload)
	return nil
}
