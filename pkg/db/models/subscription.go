package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// Subscription mirrors a recurring-billing mandate held at the gateway.
type Subscription struct {
	ID                     uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalSubscriptionID string                   `gorm:"column:external_subscription_id;not null;uniqueIndex:ux_subscriptions_external_subscription_id"`
	Gateway                enums.GatewayName        `gorm:"column:gateway;type:text;not null"`
	PlanID                 string                   `gorm:"column:plan_id;not null"`
	TenantID               uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;index"`
	BookingID              *uuid.UUID               `gorm:"column:booking_id;type:uuid"`
	Amount                 decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency               string                   `gorm:"column:currency;type:varchar(3);not null"`
	Purpose                enums.PaymentPurpose     `gorm:"column:purpose;type:text;not null"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'created'"`
	StartAt                *time.Time               `gorm:"column:start_at"`
	EndAt                  *time.Time               `gorm:"column:end_at"`
	TotalCount             *int                     `gorm:"column:total_count"`
	PaidCount              int                      `gorm:"column:paid_count;not null;default:0"`
	RemainingCount         *int                     `gorm:"column:remaining_count"`
	CurrentStart           *time.Time               `gorm:"column:current_start"`
	CurrentEnd             *time.Time               `gorm:"column:current_end"`
	ChargeAt               *time.Time               `gorm:"column:charge_at"`
	ShortURL               *string                  `gorm:"column:short_url"`
	Notes                  json.RawMessage          `gorm:"column:notes;type:jsonb"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	ensureJSON(&s.Notes)
	return nil
}

// RecordCharge bumps paid_count and keeps remaining_count derived from it.
func (s *Subscription) RecordCharge() {
	s.PaidCount++
	if s.TotalCount != nil {
		if s.PaidCount > *s.TotalCount {
			s.PaidCount = *s.TotalCount
		}
		remaining := *s.TotalCount - s.PaidCount
		s.RemainingCount = &remaining
	}
}

// SubscriptionCharge is one recurring charge; external_charge_id makes
// redelivered charge events a no-op.
type SubscriptionCharge struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID   uuid.UUID       `gorm:"column:subscription_id;type:uuid;not null;index"`
	ExternalChargeID string          `gorm:"column:external_charge_id;not null;uniqueIndex:ux_subscription_charges_external_charge_id"`
	TenantID         uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency         string          `gorm:"column:currency;type:varchar(3);not null"`
	RawPayload       json.RawMessage `gorm:"column:raw_payload;type:jsonb"`
	ChargedAt        time.Time       `gorm:"column:charged_at;not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (c *SubscriptionCharge) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	ensureJSON(&c.RawPayload)
	return nil
}
