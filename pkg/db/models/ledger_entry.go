package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// LedgerEntry is one append-only line of a double-entry transaction.
type LedgerEntry struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID                 `gorm:"column:tenant_id;type:uuid;not null;index"`
	TransactionID string                    `gorm:"column:transaction_id;not null;uniqueIndex:ux_ledger_entries_transaction_account,priority:1"`
	Account       enums.LedgerAccount       `gorm:"column:account;type:text;not null;uniqueIndex:ux_ledger_entries_transaction_account,priority:2"`
	Debit         decimal.Decimal           `gorm:"column:debit;type:numeric(14,2);not null;default:0"`
	Credit        decimal.Decimal           `gorm:"column:credit;type:numeric(14,2);not null;default:0"`
	Currency      string                    `gorm:"column:currency;type:varchar(3);not null"`
	Description   string                    `gorm:"column:description;not null"`
	ReferenceType enums.LedgerReferenceType `gorm:"column:reference_type;type:text;not null"`
	ReferenceID   uuid.UUID                 `gorm:"column:reference_id;type:uuid;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
