// Package intents owns payment intent creation and the opening of gateway
// orders. Status changes driven by gateway events live in reconciliation.
package intents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
)

type gatewayLookup interface {
	Get(name string) (gateway.Gateway, error)
}

// Service defines the intent surface used by the HTTP layer.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.PaymentIntent, error)
	OpenOrder(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error)
	Get(ctx context.Context, intentID uuid.UUID) (*Details, error)
}

// ServiceParams groups dependencies for the intent service.
type ServiceParams struct {
	Repo            Repository
	Payments        payments.Repository
	Gateways        gatewayLookup
	Limits          config.AmountLimits
	DefaultCurrency string
	Logger          *logger.Logger
}

// CreateInput captures a caller's charge request.
type CreateInput struct {
	TenantID    uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Purpose     enums.PaymentPurpose
	Gateway     string
	Description string
	BookingID   *uuid.UUID
	DueDate     *time.Time
	Metadata    map[string]any
}

// Details is an intent with the payments applied to it.
type Details struct {
	Intent   *models.PaymentIntent
	Payments []models.Payment
}

type service struct {
	repo            Repository
	payments        payments.Repository
	gateways        gatewayLookup
	limits          config.AmountLimits
	defaultCurrency string
	logg            *logger.Logger
}

// NewService builds an intent service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("intent repo required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment repo required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Limits.Min.IsZero() || params.Limits.Max.LessThan(params.Limits.Min) {
		return nil, fmt.Errorf("amount limits required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.DefaultCurrency))
	if currency == "" {
		currency = "INR"
	}
	return &service{
		repo:            params.Repo,
		payments:        params.Payments,
		gateways:        params.Gateways,
		limits:          params.Limits,
		defaultCurrency: currency,
		logg:            params.Logger,
	}, nil
}

// ReceiptKey is the merchant-side reference sent to the gateway with the order.
func ReceiptKey(purpose enums.PaymentPurpose, intentID uuid.UUID) string {
	return fmt.Sprintf("PG_%s_%s", purpose, intentID)
}

// Create persists a CREATED intent and opens its gateway order. When the
// gateway call fails the intent stays CREATED and the returned error is
// retryable through OpenOrder.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.PaymentIntent, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required")
	}
	if !input.Purpose.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purpose %q", input.Purpose))
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if err := s.checkAmount(input.Amount, currency); err != nil {
		return nil, err
	}

	gw, err := s.gateways.Get(input.Gateway)
	if err != nil {
		return nil, err
	}
	if gw.Name() == enums.GatewayManual {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual intents are recorded through the payment endpoints")
	}

	var metadata json.RawMessage
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "metadata must be a json object")
		}
		metadata = raw
	}

	intentID := uuid.New()
	intent := &models.PaymentIntent{
		ID:         intentID,
		Gateway:    gw.Name(),
		TenantID:   input.TenantID,
		Amount:     money.Normalize(input.Amount, currency),
		Currency:   currency,
		Purpose:    input.Purpose,
		Status:     enums.IntentStatusCreated,
		BookingID:  input.BookingID,
		DueDate:    input.DueDate,
		Metadata:   metadata,
		ReceiptKey: ReceiptKey(input.Purpose, intentID),
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		intent.Description = &desc
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment intent")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"intent_id": intent.ID.String(),
		"tenant_id": intent.TenantID.String(),
		"gateway":   intent.Gateway.String(),
		"purpose":   intent.Purpose.String(),
	})
	s.logg.Info(logCtx, "intent.created")

	if err := s.openOrder(logCtx, gw, intent); err != nil {
		return intent, err
	}
	return intent, nil
}

func (s *service) checkAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if amount.LessThan(s.limits.Min) || amount.GreaterThan(s.limits.Max) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount outside allowed range").
			WithDetails(map[string]string{"min": s.limits.Min.String(), "max": s.limits.Max.String()})
	}
	if _, err := money.ToMinorUnits(amount, currency); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount precision")
	}
	return nil
}

// OpenOrder retries the gateway order for an intent still in CREATED. An
// intent that already has an order is returned unchanged.
func (s *service) OpenOrder(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error) {
	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.HasOrder() {
		return intent, nil
	}
	if intent.Status != enums.IntentStatusCreated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "gateway order can only be opened for a CREATED intent").
			WithDetails(map[string]string{"intent_id": intent.ID.String(), "status": intent.Status.String()})
	}
	gw, err := s.gateways.Get(intent.Gateway.String())
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"intent_id": intent.ID.String(),
		"gateway":   intent.Gateway.String(),
	})
	if err := s.openOrder(logCtx, gw, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// openOrder calls the gateway outside any transaction and then attaches the
// order to the intent.
func (s *service) openOrder(ctx context.Context, gw gateway.Gateway, intent *models.PaymentIntent) error {
	order, err := gw.OpenOrder(ctx, gateway.OrderRequest{
		IntentID:   intent.ID,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		ReceiptKey: intent.ReceiptKey,
		Purpose:    intent.Purpose,
		Notes: map[string]string{
			"tenant_id": intent.TenantID.String(),
		},
	})
	if err != nil {
		s.logg.Error(ctx, "intent.open_order_failed", err)
		code := pkgerrors.CodeOf(err)
		if !pkgerrors.IsRetryable(err) {
			code = pkgerrors.CodeDependency
		}
		return pkgerrors.Wrap(code, err, "open gateway order").
			WithDetails(map[string]string{"intent_id": intent.ID.String(), "status": intent.Status.String()})
	}

	handle := gw.BuildIntentHandle(order.ExternalOrderID, intent.Amount)
	if err := s.repo.AttachOrder(ctx, intent.ID, order.ExternalOrderID, handle); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach gateway order")
	}

	intent.ExternalOrderID = &order.ExternalOrderID
	intent.RedirectHandle = &handle
	intent.Status = enums.IntentStatusPending
	s.logg.Info(s.logg.WithField(ctx, "external_order_id", order.ExternalOrderID), "intent.order_opened")
	return nil
}

func (s *service) Get(ctx context.Context, intentID uuid.UUID) (*Details, error) {
	if intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id is required")
	}
	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.payments.ListByIntent(ctx, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list intent payments")
	}
	return &Details{Intent: intent, Payments: rows}, nil
}
