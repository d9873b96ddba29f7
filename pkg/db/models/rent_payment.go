package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RentPayment is a rent collection recorded without a gateway.
type RentPayment struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntentID    uuid.UUID       `gorm:"column:intent_id;type:uuid;not null;index"`
	TenantID    uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	RoomNo      string          `gorm:"column:room_no;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Status      string          `gorm:"column:status;not null"`
	DueDate     *time.Time      `gorm:"column:due_date;type:date"`
	PaymentDate time.Time       `gorm:"column:payment_date;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (r *RentPayment) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// AdvancePayment is an advance or deposit recorded without a gateway.
type AdvancePayment struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntentID    uuid.UUID       `gorm:"column:intent_id;type:uuid;not null;index"`
	TenantID    uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	PGID        uuid.UUID       `gorm:"column:pg_id;type:uuid;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	PaymentDate time.Time       `gorm:"column:payment_date;not null"`
	Notes       *string         `gorm:"column:notes"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (a *AdvancePayment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
