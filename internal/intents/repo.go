package intents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

// Repository manages persistence for payment intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByExternalOrderID(ctx context.Context, orderID string) (*models.PaymentIntent, error)
	FindByExternalOrderIDForUpdate(ctx context.Context, orderID string) (*models.PaymentIntent, error)
	AttachOrder(ctx context.Context, id uuid.UUID, orderID, handle string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.IntentStatus) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.PaymentIntent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return r.first(db.ForUpdate(r.db.WithContext(ctx)), "id = ?", id)
}

func (r *repository) FindByExternalOrderID(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	return r.first(r.db.WithContext(ctx), "external_order_id = ?", orderID)
}

func (r *repository) FindByExternalOrderIDForUpdate(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	return r.first(db.ForUpdate(r.db.WithContext(ctx)), "external_order_id = ?", orderID)
}

func (r *repository) first(query *gorm.DB, cond string, arg any) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := query.Where(cond, arg).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, err
	}
	return &intent, nil
}

// AttachOrder stores the gateway order on a CREATED intent and moves it to
// PENDING. The external order id is never overwritten once set.
func (r *repository) AttachOrder(ctx context.Context, id uuid.UUID, orderID, handle string) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ? AND external_order_id IS NULL", id, enums.IntentStatusCreated).
		Updates(map[string]any{
			"external_order_id": orderID,
			"redirect_handle":   handle,
			"status":            enums.IntentStatusPending,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "intent already has a gateway order")
	}
	return nil
}

// UpdateStatus moves the intent only while it still holds from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.IntentStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "intent status changed concurrently").
			WithDetails(map[string]string{"intent_id": id.String(), "from": from.String(), "to": to.String()})
	}
	return nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	var intents []models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}
