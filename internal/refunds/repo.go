package refunds

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

// Repository manages persistence for refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.Refund) error
	FindByExternalID(ctx context.Context, externalRefundID string) (*models.Refund, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RefundStatus) error
	SumByPayment(ctx context.Context, paymentID uuid.UUID, statuses ...enums.RefundStatus) (decimal.Decimal, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a refund repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// FindByExternalID returns nil, nil when the refund is unknown.
func (r *repository) FindByExternalID(ctx context.Context, externalRefundID string) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).Where("external_refund_id = ?", externalRefundID).First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RefundStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund status changed concurrently")
	}
	return nil
}

// SumByPayment totals refunds of a payment in the given statuses.
func (r *repository) SumByPayment(ctx context.Context, paymentID uuid.UUID, statuses ...enums.RefundStatus) (decimal.Decimal, error) {
	var refunds []models.Refund
	query := r.db.WithContext(ctx).Where("payment_id = ?", paymentID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Find(&refunds).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, refund := range refunds {
		total = total.Add(refund.Amount)
	}
	return total, nil
}

func (r *repository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}
