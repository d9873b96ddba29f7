package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/internal/webhooks"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

type deliveryHandler interface {
	Handle(ctx context.Context, delivery webhooks.Delivery) (reconciliation.Outcome, error)
}

type webhookResponse struct {
	Status string `json:"status"`
}

// GatewayWebhook accepts POST /webhooks/{gateway}. Duplicates and discarded
// events answer 200 so the gateway stops retrying; retryable failures answer
// 5xx so it tries again.
func GatewayWebhook(svc deliveryHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			writeStatus(ctx, w, logg, http.StatusInternalServerError, "error")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logg.Warn(ctx, "webhook.body_too_large")
				writeStatus(ctx, w, logg, http.StatusRequestEntityTooLarge, "error")
				return
			}
			logg.Error(ctx, "webhook.read_body_failed", err)
			writeStatus(ctx, w, logg, http.StatusBadRequest, "error")
			return
		}

		outcome, err := svc.Handle(ctx, webhooks.Delivery{
			Gateway: strings.ToLower(strings.TrimSpace(chi.URLParam(r, "gateway"))),
			Header:  r.Header,
			Body:    body,
		})
		if err != nil {
			status := pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).HTTPStatus
			if status >= http.StatusInternalServerError {
				logg.Error(ctx, "webhook.request_failed", err)
			}
			writeStatus(ctx, w, logg, status, "error")
			return
		}
		w.Header().Set("X-Webhook-Outcome", outcome.String())
		writeStatus(ctx, w, logg, http.StatusOK, "success")
	}
}

func writeStatus(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(webhookResponse{Status: value}); err != nil && logg != nil {
		logg.Error(ctx, "webhook.write_response_failed", err)
	}
}
