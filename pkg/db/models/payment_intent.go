package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// PaymentIntent is one requested charge against a tenant.
type PaymentIntent struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalOrderID *string              `gorm:"column:external_order_id;uniqueIndex:ux_payment_intents_external_order_id"`
	Gateway         enums.GatewayName    `gorm:"column:gateway;type:text;not null"`
	TenantID        uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	Amount          decimal.Decimal      `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency        string               `gorm:"column:currency;type:varchar(3);not null;default:'INR'"`
	Purpose         enums.PaymentPurpose `gorm:"column:purpose;type:text;not null"`
	Status          enums.IntentStatus   `gorm:"column:status;type:text;not null;default:'CREATED'"`
	Description     *string              `gorm:"column:description"`
	BookingID       *uuid.UUID           `gorm:"column:booking_id;type:uuid"`
	DueDate         *time.Time           `gorm:"column:due_date;type:date"`
	Metadata        json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	ReceiptKey      string               `gorm:"column:receipt_key;not null"`
	RedirectHandle  *string              `gorm:"column:redirect_handle"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *PaymentIntent) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	ensureJSON(&i.Metadata)
	return nil
}

// HasOrder reports whether a gateway order has been opened for the intent.
func (i *PaymentIntent) HasOrder() bool {
	return i.ExternalOrderID != nil && *i.ExternalOrderID != ""
}
