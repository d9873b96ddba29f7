package subscriptions

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/api/responses"
	"github.com/pgwallah/pgwallah-backend/api/validators"
	"github.com/pgwallah/pgwallah-backend/internal/subscriptions"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
)

type createRequest struct {
	TenantID   uuid.UUID         `json:"tenant_id" validate:"required"`
	BookingID  *uuid.UUID        `json:"booking_id,omitempty"`
	Gateway    string            `json:"gateway,omitempty"`
	PlanID     string            `json:"plan_id" validate:"required"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency,omitempty" validate:"omitempty,currency"`
	Purpose    string            `json:"purpose,omitempty"`
	TotalCount int               `json:"total_count" validate:"required,gt=0"`
	CustomerID string            `json:"customer_id,omitempty"`
	CardID     string            `json:"card_id,omitempty"`
	StartAt    *time.Time        `json:"start_at,omitempty"`
	Notes      map[string]string `json:"notes,omitempty"`
}

type cancelRequest struct {
	AtCycleEnd bool `json:"at_cycle_end"`
}

type subscriptionResponse struct {
	ID                     uuid.UUID  `json:"id"`
	ExternalSubscriptionID string     `json:"external_subscription_id"`
	Gateway                string     `json:"gateway"`
	PlanID                 string     `json:"plan_id"`
	TenantID               uuid.UUID  `json:"tenant_id"`
	BookingID              *uuid.UUID `json:"booking_id,omitempty"`
	Amount                 string     `json:"amount"`
	Currency               string     `json:"currency"`
	Purpose                string     `json:"purpose"`
	Status                 string     `json:"status"`
	TotalCount             *int       `json:"total_count"`
	PaidCount              int        `json:"paid_count"`
	RemainingCount         *int       `json:"remaining_count"`
	CurrentStart           *time.Time `json:"current_start,omitempty"`
	CurrentEnd             *time.Time `json:"current_end,omitempty"`
	ChargeAt               *time.Time `json:"charge_at,omitempty"`
	ShortURL               *string    `json:"short_url,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

type chargeResponse struct {
	ID               uuid.UUID `json:"id"`
	ExternalChargeID string    `json:"external_charge_id"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	ChargedAt        time.Time `json:"charged_at"`
}

type detailResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	Charges      []chargeResponse     `json:"charges"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                     sub.ID,
		ExternalSubscriptionID: sub.ExternalSubscriptionID,
		Gateway:                sub.Gateway.String(),
		PlanID:                 sub.PlanID,
		TenantID:               sub.TenantID,
		BookingID:              sub.BookingID,
		Amount:                 money.Format(sub.Amount, sub.Currency),
		Currency:               sub.Currency,
		Purpose:                sub.Purpose.String(),
		Status:                 sub.Status.String(),
		TotalCount:             sub.TotalCount,
		PaidCount:              sub.PaidCount,
		RemainingCount:         sub.RemainingCount,
		CurrentStart:           sub.CurrentStart,
		CurrentEnd:             sub.CurrentEnd,
		ChargeAt:               sub.ChargeAt,
		ShortURL:               sub.ShortURL,
		CreatedAt:              sub.CreatedAt,
	}
}

// Create handles POST /subscriptions. Purpose defaults to rent.
func Create(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		var payload createRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purpose := enums.PurposeRent
		if raw := strings.TrimSpace(payload.Purpose); raw != "" {
			purpose = enums.PaymentPurpose(strings.ToLower(raw))
		}

		sub, err := svc.Create(r.Context(), subscriptions.CreateInput{
			TenantID:   payload.TenantID,
			BookingID:  payload.BookingID,
			Gateway:    strings.ToLower(strings.TrimSpace(payload.Gateway)),
			PlanID:     strings.TrimSpace(payload.PlanID),
			Amount:     payload.Amount,
			Currency:   strings.ToUpper(strings.TrimSpace(payload.Currency)),
			Purpose:    purpose,
			TotalCount: payload.TotalCount,
			CustomerID: strings.TrimSpace(payload.CustomerID),
			CardID:     strings.TrimSpace(payload.CardID),
			StartAt:    payload.StartAt,
			Notes:      payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSubscriptionResponse(sub))
	}
}

// Cancel handles POST /subscriptions/{subscriptionID}/cancel. An empty body
// cancels immediately.
func Cancel(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subscriptionID, err := validators.ParsePathUUID(r, "subscriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		sub, err := svc.Cancel(r.Context(), subscriptionID, payload.AtCycleEnd)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

// Get handles GET /subscriptions/{subscriptionID}.
func Get(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subscriptionID, err := validators.ParsePathUUID(r, "subscriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		details, err := svc.Get(r.Context(), subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := detailResponse{
			Subscription: newSubscriptionResponse(details.Subscription),
			Charges:      make([]chargeResponse, 0, len(details.Charges)),
		}
		for _, charge := range details.Charges {
			out.Charges = append(out.Charges, chargeResponse{
				ID:               charge.ID,
				ExternalChargeID: charge.ExternalChargeID,
				Amount:           money.Format(charge.Amount, charge.Currency),
				Currency:         charge.Currency,
				ChargedAt:        charge.ChargedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// List handles GET /subscriptions?tenant_id=.
func List(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseQueryUUID(r, "tenant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subs, err := svc.ListByTenant(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]subscriptionResponse, 0, len(subs))
		for i := range subs {
			out = append(out, newSubscriptionResponse(&subs[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
