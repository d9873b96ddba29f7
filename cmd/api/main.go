package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pgwallah/pgwallah-backend/api/controllers"
	"github.com/pgwallah/pgwallah-backend/api/routes"
	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/internal/ledger"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/internal/receipts"
	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/internal/refunds"
	"github.com/pgwallah/pgwallah-backend/internal/rent"
	"github.com/pgwallah/pgwallah-backend/internal/subscriptions"
	"github.com/pgwallah/pgwallah-backend/internal/webhooks"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/migrate"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/redis"
	"github.com/pgwallah/pgwallah-backend/pkg/storage/gcs"
)

const shutdownTimeout = 20 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(ctx, "error closing gcs", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gateways, err := buildGateways(ctx, cfg, logg, metrics.NewGatewayMetrics(registry))
	requireResource(ctx, logg, "gateway registry", err)

	limits, err := cfg.Payments.Limits()
	requireResource(ctx, logg, "payment limits", err)

	intentRepo := intents.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	refundRepo := refunds.NewRepository(dbClient.DB())
	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "ledger", err)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	engine, err := reconciliation.NewEngine(reconciliation.EngineParams{
		TransactionRunner: dbClient,
		Intents:           intentRepo,
		Payments:          paymentRepo,
		Subscriptions:     subscriptionRepo,
		Refunds:           refundRepo,
		Ledger:            ledgerService,
		Outbox:            outboxService,
		Gateways:          gateways,
		Metrics:           metrics.NewReconciliationMetrics(registry),
		Logger:            logg,
	})
	requireResource(ctx, logg, "reconciliation engine", err)

	intentService, err := intents.NewService(intents.ServiceParams{
		Repo:            intentRepo,
		Payments:        paymentRepo,
		Gateways:        gateways,
		Limits:          limits,
		DefaultCurrency: cfg.Payments.DefaultCurrency,
		Logger:          logg,
	})
	requireResource(ctx, logg, "intent service", err)

	rentService, err := rent.NewService(rent.ServiceParams{
		Repo:     rent.NewRepository(dbClient.DB()),
		Capturer: engine,
		Outbox:   outboxService,
		Limits:   limits,
		Logger:   logg,
	})
	requireResource(ctx, logg, "rent service", err)

	refundService, err := refunds.NewService(refunds.ServiceParams{
		Repo:     refundRepo,
		Payments: paymentRepo,
		Gateways: gateways,
		Recorder: engine,
		Logger:   logg,
	})
	requireResource(ctx, logg, "refund service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     subscriptionRepo,
		Gateways: gateways,
		Syncer:   engine,
		Logger:   logg,
	})
	requireResource(ctx, logg, "subscription service", err)

	receiptService, err := receipts.NewService(receipts.ServiceParams{
		Payments: paymentRepo,
		Intents:  intentRepo,
		Uploader: gcsClient,
		Config:   cfg.Receipts,
		Logger:   logg,
	})
	requireResource(ctx, logg, "receipt service", err)

	guard, err := webhooks.NewGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	requireResource(ctx, logg, "webhook guard", err)

	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		Gateways:        gateways,
		Engine:          engine,
		Guard:           guard,
		Logger:          logg,
		SignatureBypass: cfg.Gateway.SignatureBypass && !cfg.App.IsProd(),
	})
	requireResource(ctx, logg, "webhook service", err)

	handler := routes.NewRouter(routes.Dependencies{
		Config:   cfg,
		Logger:   logg,
		Gatherer: registry,
		Readiness: []controllers.ReadinessCheck{
			{Name: "db", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
			{Name: "gcs", Pinger: gcsClient},
		},
		Idempotency:   redisClient,
		Webhooks:      webhookService,
		Engine:        engine,
		Intents:       intentService,
		Manual:        rentService,
		Refunds:       refundService,
		Receipts:      receiptService,
		Subscriptions: subscriptionService,
		Ledger:        ledgerService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"instance":        id,
		"default_gateway": gateways.Default().Name().String(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
		logg.Info(logCtx, "api server stopped")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
