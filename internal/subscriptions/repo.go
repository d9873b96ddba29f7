package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

// Repository manages persistence for subscriptions and their charges.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	FindByExternalIDForUpdate(ctx context.Context, externalID string) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	CreateCharge(ctx context.Context, charge *models.SubscriptionCharge) error
	FindChargeByExternalID(ctx context.Context, externalChargeID string) (*models.SubscriptionCharge, error)
	ListCharges(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionCharge, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	return r.first(r.db.WithContext(ctx), "external_subscription_id = ?", externalID)
}

func (r *repository) FindByExternalIDForUpdate(ctx context.Context, externalID string) (*models.Subscription, error) {
	return r.first(db.ForUpdate(r.db.WithContext(ctx)), "external_subscription_id = ?", externalID)
}

func (r *repository) first(query *gorm.DB, cond string, arg any) (*models.Subscription, error) {
	var sub models.Subscription
	if err := query.Where(cond, arg).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) CreateCharge(ctx context.Context, charge *models.SubscriptionCharge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

// FindChargeByExternalID returns nil, nil when the charge has not been recorded.
func (r *repository) FindChargeByExternalID(ctx context.Context, externalChargeID string) (*models.SubscriptionCharge, error) {
	var charge models.SubscriptionCharge
	err := r.db.WithContext(ctx).Where("external_charge_id = ?", externalChargeID).First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *repository) ListCharges(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionCharge, error) {
	var charges []models.SubscriptionCharge
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("charged_at ASC").
		Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
