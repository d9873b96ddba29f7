// Package subscriptions opens and cancels recurring mandates at the gateway.
// Counters and status moves reported afterwards are applied by reconciliation.
package subscriptions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type gatewayLookup interface {
	Get(name string) (gateway.Gateway, error)
}

// syncer applies a gateway snapshot through the reconciliation path.
type syncer interface {
	SyncSubscription(ctx context.Context, gw enums.GatewayName, rec gateway.SubscriptionRecord) error
}

// Service exposes subscription operations to the HTTP layer.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Subscription, error)
	Cancel(ctx context.Context, subscriptionID uuid.UUID, atCycleEnd bool) (*models.Subscription, error)
	Get(ctx context.Context, subscriptionID uuid.UUID) (*Details, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error)
}

type ServiceParams struct {
	Repo     Repository
	Gateways gatewayLookup
	Syncer   syncer
	Logger   *logger.Logger
}

// CreateInput describes a mandate for a plan configured at the gateway.
type CreateInput struct {
	TenantID   uuid.UUID
	BookingID  *uuid.UUID
	Gateway    string
	PlanID     string
	Amount     decimal.Decimal
	Currency   string
	Purpose    enums.PaymentPurpose
	TotalCount int
	CustomerID string
	CardID     string
	StartAt    *time.Time
	Notes      map[string]string
}

// Details is a subscription with its recorded charges.
type Details struct {
	Subscription *models.Subscription
	Charges      []models.SubscriptionCharge
}

type service struct {
	repo     Repository
	gateways gatewayLookup
	syncer   syncer
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("subscription syncer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		gateways: params.Gateways,
		syncer:   params.Syncer,
		logg:     params.Logger,
	}, nil
}

func (input CreateInput) validate() error {
	switch {
	case input.TenantID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required")
	case strings.TrimSpace(input.PlanID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "plan_id is required")
	case !input.Amount.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	case !input.Purpose.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purpose %q", input.Purpose))
	case input.TotalCount <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "total_count must be positive")
	}
	return nil
}

// Create opens the mandate at the gateway and stores it. If the row cannot be
// written the gateway mandate is cancelled so no orphan keeps charging.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Subscription, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	gw, subGateway, err := s.subscriptionGateway(input.Gateway)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id": input.TenantID.String(),
		"gateway":   gw.Name().String(),
		"plan_id":   input.PlanID,
	})

	notes := map[string]string{"tenant_id": input.TenantID.String()}
	for k, v := range input.Notes {
		notes[k] = v
	}
	rec, err := subGateway.CreateSubscription(logCtx, gateway.SubscriptionRequest{
		PlanID:     input.PlanID,
		TotalCount: input.TotalCount,
		CustomerID: input.CustomerID,
		CardID:     input.CardID,
		StartAt:    input.StartAt,
		Notes:      notes,
	})
	if err != nil {
		s.logg.Error(logCtx, "subscription.create_failed", err)
		return nil, gatewayError(err, "create gateway subscription")
	}

	sub := subscriptionFromRecord(gw.Name(), input, rec)
	rawNotes, err := json.Marshal(notes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode subscription notes")
	}
	sub.Notes = rawNotes

	logCtx = s.logg.WithField(logCtx, "external_subscription_id", rec.ExternalSubscriptionID)
	if err := s.repo.Create(logCtx, sub); err != nil {
		s.logg.Error(logCtx, "subscription.persist_failed", err)
		if _, cancelErr := subGateway.CancelSubscription(logCtx, rec.ExternalSubscriptionID, false); cancelErr != nil {
			s.logg.Error(logCtx, "subscription.compensation_failed", cancelErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store subscription")
	}

	s.logg.Info(s.logg.WithField(logCtx, "subscription_id", sub.ID.String()), "subscription.created")
	return sub, nil
}

func subscriptionFromRecord(name enums.GatewayName, input CreateInput, rec *gateway.SubscriptionRecord) *models.Subscription {
	status := rec.Status
	if !status.IsValid() {
		status = enums.SubscriptionStatusCreated
	}
	total := input.TotalCount
	if rec.TotalCount != nil {
		total = *rec.TotalCount
	}
	remaining := total
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "INR"
	}
	sub := &models.Subscription{
		ExternalSubscriptionID: rec.ExternalSubscriptionID,
		Gateway:                name,
		PlanID:                 input.PlanID,
		TenantID:               input.TenantID,
		BookingID:              input.BookingID,
		Amount:                 input.Amount,
		Currency:               currency,
		Purpose:                input.Purpose,
		Status:                 status,
		StartAt:                rec.StartAt,
		EndAt:                  rec.EndAt,
		TotalCount:             &total,
		RemainingCount:         &remaining,
		CurrentStart:           rec.CurrentStart,
		CurrentEnd:             rec.CurrentEnd,
		ChargeAt:               rec.ChargeAt,
	}
	if rec.ShortURL != "" {
		url := rec.ShortURL
		sub.ShortURL = &url
	}
	return sub
}

// Cancel asks the gateway to stop the mandate and applies the returned
// snapshot. Cancelling a terminal subscription returns it unchanged.
func (s *service) Cancel(ctx context.Context, subscriptionID uuid.UUID, atCycleEnd bool) (*models.Subscription, error) {
	if subscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return sub, nil
	}
	gw, subGateway, err := s.subscriptionGateway(sub.Gateway.String())
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscription_id":          sub.ID.String(),
		"external_subscription_id": sub.ExternalSubscriptionID,
		"gateway":                  gw.Name().String(),
		"at_cycle_end":             atCycleEnd,
	})
	rec, err := subGateway.CancelSubscription(logCtx, sub.ExternalSubscriptionID, atCycleEnd)
	if err != nil {
		s.logg.Error(logCtx, "subscription.cancel_failed", err)
		return nil, gatewayError(err, "cancel gateway subscription")
	}
	if rec.ExternalSubscriptionID == "" {
		rec.ExternalSubscriptionID = sub.ExternalSubscriptionID
	}
	if err := s.syncer.SyncSubscription(logCtx, gw.Name(), *rec); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(logCtx, "status", rec.Status.String()), "subscription.cancel_requested")
	return s.repo.FindByID(ctx, sub.ID)
}

func (s *service) Get(ctx context.Context, subscriptionID uuid.UUID) (*Details, error) {
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	charges, err := s.repo.ListCharges(ctx, sub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscription charges")
	}
	return &Details{Subscription: sub, Charges: charges}, nil
}

func (s *service) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required")
	}
	subs, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}
	return subs, nil
}

func (s *service) subscriptionGateway(name string) (gateway.Gateway, gateway.SubscriptionGateway, error) {
	gw, err := s.gateways.Get(name)
	if err != nil {
		return nil, nil, err
	}
	subGateway, ok := gw.(gateway.SubscriptionGateway)
	if !ok {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("gateway %s does not support subscriptions", gw.Name()))
	}
	return gw, subGateway, nil
}

// gatewayError keeps retryable codes from the adapter and reports everything
// else as a dependency failure.
func gatewayError(err error, message string) error {
	code := pkgerrors.CodeOf(err)
	if !pkgerrors.IsRetryable(err) {
		code = pkgerrors.CodeDependency
	}
	return pkgerrors.Wrap(code, err, message)
}
