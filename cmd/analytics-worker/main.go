package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pgwallah/pgwallah-backend/internal/analytics/router"
	"github.com/pgwallah/pgwallah-backend/internal/analytics/types"
	"github.com/pgwallah/pgwallah-backend/internal/analytics/worker"
	"github.com/pgwallah/pgwallah-backend/internal/analytics/writer"
	"github.com/pgwallah/pgwallah-backend/pkg/bigquery"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/idempotency"
	"github.com/pgwallah/pgwallah-backend/pkg/pubsub"
	"github.com/pgwallah/pgwallah-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "analytics worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

// run wires the consumer chain: Pub/Sub subscription, Redis dedup, event
// router and the batching BigQuery writer.
func run(cfg *config.Config, logg *logger.Logger) error {
	bootCtx := context.Background()

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly(bootCtx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg, cfg.PubSub.AnalyticsSubscription)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeQuietly(bootCtx, logg, "pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(bootCtx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer closeQuietly(bootCtx, logg, "bigquery", bqClient.Close)

	if err := bqClient.EnsureTable(bootCtx, bigquery.TableSpec{
		Name:           cfg.BigQuery.PaymentEventsTable,
		Schema:         types.PaymentEventSchema(),
		PartitionField: "occurred_at",
	}); err != nil {
		return err
	}

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	dedup, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return err
	}
	rows, err := writer.New(bqClient, writer.Config{
		PaymentEventsTable: cfg.BigQuery.PaymentEventsTable,
		BatchSize:          cfg.BigQuery.InsertBatchSize,
		RetryPolicy:        writer.RetryPolicy{MaxAttempts: cfg.BigQuery.InsertMaxAttempts},
	})
	if err != nil {
		return err
	}
	events, err := router.NewRouter(rows, logg, nil)
	if err != nil {
		return err
	}
	consumer, err := worker.NewService(subscription, events, dedup, rows, logg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"subscription": cfg.PubSub.AnalyticsSubscription,
		"table":        cfg.BigQuery.PaymentEventsTable,
	})
	logg.Info(ctx, "analytics worker ready")
	return consumer.Run(ctx)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "failed to close "+name, err)
	}
}
