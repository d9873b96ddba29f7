package rent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/pagination"
)

// RentFilter narrows the admin rent listing.
type RentFilter struct {
	TenantID *uuid.UUID
	RoomNo   string
	Status   string
	From     *time.Time
	To       *time.Time
}

// AdvanceFilter narrows the admin advance listing.
type AdvanceFilter struct {
	TenantID *uuid.UUID
	PGID     *uuid.UUID
	From     *time.Time
	To       *time.Time
}

// Repository persists no-gateway rent and advance collections.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateRent(ctx context.Context, row *models.RentPayment) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) CreateAdvance(ctx context.Context, row *models.AdvancePayment) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) ListRent(ctx context.Context, filter RentFilter, cursor *pagination.Cursor, limit int) ([]models.RentPayment, error) {
	query := r.db.WithContext(ctx).Model(&models.RentPayment{})
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if room := strings.TrimSpace(filter.RoomNo); room != "" {
		query = query.Where("LOWER(room_no) LIKE ?", "%"+strings.ToLower(room)+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = paymentDateRange(query, filter.From, filter.To)

	var rows []models.RentPayment
	if err := pagination.Keyset(query, cursor, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) ListAdvance(ctx context.Context, filter AdvanceFilter, cursor *pagination.Cursor, limit int) ([]models.AdvancePayment, error) {
	query := r.db.WithContext(ctx).Model(&models.AdvancePayment{})
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.PGID != nil {
		query = query.Where("pg_id = ?", *filter.PGID)
	}
	query = paymentDateRange(query, filter.From, filter.To)

	var rows []models.AdvancePayment
	if err := pagination.Keyset(query, cursor, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func paymentDateRange(query *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where("payment_date >= ?", from.UTC())
	}
	if to != nil {
		query = query.Where("payment_date <= ?", to.UTC())
	}
	return query
}
