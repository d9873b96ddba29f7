// Package payments stores gateway payments. A row is keyed by the gateway's
// external payment id, which is the idempotency boundary for payment events.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

const maxReceiptErrorLen = 512

// Repository manages persistence for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.Payment, error)
	ListByIntent(ctx context.Context, intentID uuid.UUID) ([]models.Payment, error)
	ListCaptured(ctx context.Context, filter CapturedFilter) ([]models.Payment, error)
	ListMissingReceipts(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.GatewayPaymentStatus) error
	SetReceipt(ctx context.Context, id uuid.UUID, url string) error
	RecordReceiptFailure(ctx context.Context, id uuid.UUID, cause error) error
}

// CapturedFilter narrows ListCaptured. Zero values are ignored.
type CapturedFilter struct {
	TenantID uuid.UUID
	IntentID uuid.UUID
	Limit    int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ProcessedAt.IsZero() {
		payment.ProcessedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

// FindByExternalPaymentID returns nil, nil when the gateway payment has not been applied.
func (r *repository) FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("external_payment_id = ?", externalPaymentID).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByIntent(ctx context.Context, intentID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("processed_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListCaptured(ctx context.Context, filter CapturedFilter) ([]models.Payment, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.GatewayPaymentCaptured)
	if filter.TenantID != uuid.Nil {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.IntentID != uuid.Nil {
		query = query.Where("intent_id = ?", filter.IntentID)
	}

	var rows []models.Payment
	if err := query.Order("processed_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListMissingReceipts returns captured payments still waiting for a receipt,
// oldest first, skipping rows that exhausted their attempts.
func (r *repository) ListMissingReceipts(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.GatewayPaymentCaptured).
		Where("receipt_url IS NULL").
		Where("receipt_attempts < ?", maxAttempts).
		Where("processed_at <= ?", olderThan).
		Order("processed_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus upgrades a payment row in place; only authorized to captured is legal.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.GatewayPaymentStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":       to,
			"processed_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment status changed concurrently")
	}
	return nil
}

func (r *repository) SetReceipt(ctx context.Context, id uuid.UUID, url string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"receipt_url":      url,
			"receipt_error":    nil,
			"receipt_attempts": gorm.Expr("receipt_attempts + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return nil
}

func (r *repository) RecordReceiptFailure(ctx context.Context, id uuid.UUID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > maxReceiptErrorLen {
		msg = msg[:maxReceiptErrorLen]
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"receipt_error":    msg,
			"receipt_attempts": gorm.Expr("receipt_attempts + 1"),
		}).Error
}
