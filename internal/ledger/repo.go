package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
)

// Repository manages persistence for ledger entries. Entries are only ever inserted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntries(ctx context.Context, entries []models.LedgerEntry) error
	ListByTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
	HasTransaction(ctx context.Context, transactionID string) (bool, error)
	SumByAccount(ctx context.Context, tenantID uuid.UUID) ([]AccountTotals, error)
}

// AccountTotals is the raw debit and credit sum of one account.
type AccountTotals struct {
	Account  enums.LedgerAccount `gorm:"column:account"`
	Currency string              `gorm:"column:currency"`
	Debit    decimal.Decimal     `gorm:"column:debit"`
	Credit   decimal.Decimal     `gorm:"column:credit"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEntries(ctx context.Context, entries []models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListByTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("debit DESC").
		Order("account ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) HasTransaction(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) SumByAccount(ctx context.Context, tenantID uuid.UUID) ([]AccountTotals, error) {
	var totals []AccountTotals
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("account, currency, SUM(debit) AS debit, SUM(credit) AS credit").
		Where("tenant_id = ?", tenantID).
		Group("account, currency").
		Order("account ASC").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}
