package payments

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/api/middleware"
	"github.com/pgwallah/pgwallah-backend/api/responses"
	"github.com/pgwallah/pgwallah-backend/api/validators"
	"github.com/pgwallah/pgwallah-backend/internal/refunds"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

const maxReasonLen = 255

type createRefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

// CreateRefund handles POST /payments/{paymentID}/refunds. An omitted amount
// refunds whatever has not been refunded yet.
func CreateRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, err := validators.ParsePathUUID(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createRefundRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Request(r.Context(), refunds.RequestInput{
			PaymentID:      paymentID,
			Amount:         payload.Amount,
			Reason:         validators.SanitizeString(payload.Reason, maxReasonLen),
			IdempotencyKey: middleware.IdempotencyKeyFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newRefundResponse(refund))
	}
}

// ListRefunds handles GET /payments/{paymentID}/refunds.
func ListRefunds(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, err := validators.ParsePathUUID(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByPayment(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]refundResponse, 0, len(rows))
		for i := range rows {
			out = append(out, *newRefundResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
