package payments

import (
	"context"
	"net/http"

	"github.com/pgwallah/pgwallah-backend/api/responses"
	"github.com/pgwallah/pgwallah-backend/api/validators"
	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type verifier interface {
	Verify(ctx context.Context, input reconciliation.VerifyInput) (reconciliation.Outcome, *models.PaymentIntent, error)
}

type verifyRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	Gateway   string `json:"gateway,omitempty"`
}

type verifyResponse struct {
	Status  string          `json:"status"`
	Outcome string          `json:"outcome"`
	Intent  *intentResponse `json:"intent"`
}

// Verify handles POST /verify: 400 on a bad signature, 404 when no intent
// owns the order, 500 when the gateway re-fetch fails.
func Verify(engine verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload verifyRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outcome, intent, err := engine.Verify(r.Context(), reconciliation.VerifyInput{
			Gateway:   payload.Gateway,
			OrderID:   payload.OrderID,
			PaymentID: payload.PaymentID,
			Signature: payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verifyResponse{
			Status:  "success",
			Outcome: outcome.String(),
			Intent:  newIntentResponse(intent),
		})
	}
}
