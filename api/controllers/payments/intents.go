package payments

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/api/responses"
	"github.com/pgwallah/pgwallah-backend/api/validators"
	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

const maxDescriptionLen = 255

type intentCanceller interface {
	CancelIntent(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error)
}

type createIntentRequest struct {
	TenantID    uuid.UUID       `json:"tenant_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,currency"`
	Purpose     string          `json:"purpose" validate:"required"`
	Gateway     string          `json:"gateway,omitempty"`
	Description string          `json:"description,omitempty"`
	BookingID   *uuid.UUID      `json:"booking_id,omitempty"`
	DueDate     string          `json:"due_date,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

type intentDetailResponse struct {
	Intent   *intentResponse   `json:"intent"`
	Payments []paymentResponse `json:"payments"`
}

// CreateIntent handles POST /intents. A gateway failure leaves the intent
// CREATED and is reported with the intent id so the caller can retry the order.
func CreateIntent(svc intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intent service unavailable"))
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purpose := enums.PaymentPurpose(strings.ToLower(strings.TrimSpace(payload.Purpose)))
		if !purpose.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"purpose": "must be one of rent deposit mess maintenance other"}))
			return
		}
		dueDate, err := parseDate("due_date", payload.DueDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.Create(r.Context(), intents.CreateInput{
			TenantID:    payload.TenantID,
			Amount:      payload.Amount,
			Currency:    strings.ToUpper(strings.TrimSpace(payload.Currency)),
			Purpose:     purpose,
			Gateway:     strings.ToLower(strings.TrimSpace(payload.Gateway)),
			Description: validators.SanitizeString(payload.Description, maxDescriptionLen),
			BookingID:   payload.BookingID,
			DueDate:     dueDate,
			Metadata:    payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newIntentResponse(intent))
	}
}

// GetIntent handles GET /intents/{intentID}.
func GetIntent(svc intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intentID, err := validators.ParsePathUUID(r, "intentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		details, err := svc.Get(r.Context(), intentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intentDetailResponse{
			Intent:   newIntentResponse(details.Intent),
			Payments: newPaymentResponses(details.Payments),
		})
	}
}

// OpenIntentOrder handles POST /intents/{intentID}/order.
func OpenIntentOrder(svc intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intentID, err := validators.ParsePathUUID(r, "intentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := svc.OpenOrder(r.Context(), intentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newIntentResponse(intent))
	}
}

// CancelIntent handles POST /intents/{intentID}/cancel.
func CancelIntent(engine intentCanceller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intentID, err := validators.ParsePathUUID(r, "intentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := engine.CancelIntent(r.Context(), intentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newIntentResponse(intent))
	}
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid date").WithDetails(map[string]string{field: "must be YYYY-MM-DD"})
}
