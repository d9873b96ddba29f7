package payments

import (
	"context"
	"net/http"

	"github.com/pgwallah/pgwallah-backend/api/responses"
	"github.com/pgwallah/pgwallah-backend/api/validators"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type receiptLister interface {
	List(ctx context.Context, filter payments.CapturedFilter) ([]models.Payment, error)
}

// ListReceipts handles GET /receipts?tenant_id=&intent_id=&limit=.
func ListReceipts(svc receiptLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseQueryUUID(r, "tenant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intentID, err := validators.ParseQueryUUID(r, "intent_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), payments.CapturedFilter{
			TenantID: tenantID,
			IntentID: intentID,
			Limit:    limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]receiptResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, newReceiptResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}
