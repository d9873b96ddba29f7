package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgwallah/pgwallah-backend/api/controllers"
	ledgercontrollers "github.com/pgwallah/pgwallah-backend/api/controllers/ledger"
	paymentcontrollers "github.com/pgwallah/pgwallah-backend/api/controllers/payments"
	subscriptioncontrollers "github.com/pgwallah/pgwallah-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/pgwallah/pgwallah-backend/api/controllers/webhooks"
	"github.com/pgwallah/pgwallah-backend/api/middleware"
	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/internal/ledger"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/internal/refunds"
	"github.com/pgwallah/pgwallah-backend/internal/rent"
	"github.com/pgwallah/pgwallah-backend/internal/subscriptions"
	"github.com/pgwallah/pgwallah-backend/internal/webhooks"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/pagination"
	pkgredis "github.com/pgwallah/pgwallah-backend/pkg/redis"
)

// Engine is the reconciliation surface reachable from HTTP.
type Engine interface {
	Verify(ctx context.Context, input reconciliation.VerifyInput) (reconciliation.Outcome, *models.PaymentIntent, error)
	CancelIntent(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error)
}

// ManualPayments records and lists rent and advance collections.
type ManualPayments interface {
	RecordRent(ctx context.Context, input rent.RentInput) (*rent.RentRecord, error)
	RecordAdvance(ctx context.Context, input rent.AdvanceInput) (*rent.AdvanceRecord, error)
	ListRent(ctx context.Context, filter rent.RentFilter, params pagination.Params) (*pagination.Page[models.RentPayment], error)
	ListAdvance(ctx context.Context, filter rent.AdvanceFilter, params pagination.Params) (*pagination.Page[models.AdvancePayment], error)
}

type ReceiptLister interface {
	List(ctx context.Context, filter payments.CapturedFilter) ([]models.Payment, error)
}

type LedgerReader interface {
	Balances(ctx context.Context, tenantID uuid.UUID) ([]ledger.Balance, error)
	Transaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, delivery webhooks.Delivery) (reconciliation.Outcome, error)
}

// Dependencies carries everything the HTTP surface is built from.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Gatherer      prometheus.Gatherer
	Readiness     []controllers.ReadinessCheck
	Idempotency   pkgredis.IdempotencyStore
	Webhooks      WebhookHandler
	Engine        Engine
	Intents       intents.Service
	Manual        ManualPayments
	Refunds       refunds.Service
	Receipts      ReceiptLister
	Subscriptions subscriptions.Service
	Ledger        LedgerReader
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness...))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
		r.Post("/webhooks/{gateway}", webhookcontrollers.GatewayWebhook(deps.Webhooks, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Post("/verify", paymentcontrollers.Verify(deps.Engine, logg))

			r.Route("/intents", func(r chi.Router) {
				r.Post("/", paymentcontrollers.CreateIntent(deps.Intents, logg))
				r.Get("/{intentID}", paymentcontrollers.GetIntent(deps.Intents, logg))
				r.Post("/{intentID}/order", paymentcontrollers.OpenIntentOrder(deps.Intents, logg))
				r.Post("/{intentID}/cancel", paymentcontrollers.CancelIntent(deps.Engine, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/rent", paymentcontrollers.RecordRent(deps.Manual, logg))
				r.Get("/rent", paymentcontrollers.ListRent(deps.Manual, logg))
				r.Post("/advance", paymentcontrollers.RecordAdvance(deps.Manual, logg))
				r.Get("/advance", paymentcontrollers.ListAdvance(deps.Manual, logg))
				r.Post("/{paymentID}/refunds", paymentcontrollers.CreateRefund(deps.Refunds, logg))
				r.Get("/{paymentID}/refunds", paymentcontrollers.ListRefunds(deps.Refunds, logg))
			})

			r.Get("/receipts", paymentcontrollers.ListReceipts(deps.Receipts, logg))

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", subscriptioncontrollers.Create(deps.Subscriptions, logg))
				r.Get("/", subscriptioncontrollers.List(deps.Subscriptions, logg))
				r.Get("/{subscriptionID}", subscriptioncontrollers.Get(deps.Subscriptions, logg))
				r.Post("/{subscriptionID}/cancel", subscriptioncontrollers.Cancel(deps.Subscriptions, logg))
			})

			r.Route("/ledger", func(r chi.Router) {
				r.Get("/balances", ledgercontrollers.Balances(deps.Ledger, logg))
				r.Get("/transactions/{transactionID}", ledgercontrollers.Transaction(deps.Ledger, logg))
			})
		})
	})

	return r
}
