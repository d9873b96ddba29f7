// Command billingctl is the operator CLI for ledger balances, receipt
// regeneration and the outbox dead-letter queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/internal/ledger"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/internal/receipts"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/storage/gcs"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	root := newRootCmd(openDeps)
	root.Version = Version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDeps connects to the database, plus storage when receipts are needed.
func openDeps(ctx context.Context, needs needs) (*deps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "billingctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	closers := []func() error{dbClient.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logg.Error(ctx, "billingctl cleanup failed", err)
			}
		}
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	out := &deps{
		Ledger: ledgerService,
		DLQ:    outbox.NewDLQRepository(dbClient.DB()),
		Outbox: outbox.NewRepository(dbClient.DB()),
	}

	if needs.receipts {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect storage: %w", err)
		}
		closers = append(closers, gcsClient.Close)

		receiptService, err := receipts.NewService(receipts.ServiceParams{
			Payments: payments.NewRepository(dbClient.DB()),
			Intents:  intents.NewRepository(dbClient.DB()),
			Uploader: gcsClient,
			Config:   cfg.Receipts,
			Logger:   logg,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		out.Receipts = receiptService
	}
	return out, cleanup, nil
}
