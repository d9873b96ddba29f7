package cron

import (
	"context"
	"fmt"

	"github.com/pgwallah/pgwallah-backend/internal/receipts"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type receiptBackfiller interface {
	Backfill(ctx context.Context) (receipts.BackfillResult, error)
}

// ReceiptBackfillJobParams configures the receipt backfill job.
type ReceiptBackfillJobParams struct {
	Logger   *logger.Logger
	Receipts receiptBackfiller
}

// NewReceiptBackfillJob retries receipts for captured payments the consumer
// never finished.
func NewReceiptBackfillJob(params ReceiptBackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Receipts == nil {
		return nil, fmt.Errorf("receipt service required")
	}
	return &receiptBackfillJob{logg: params.Logger, receipts: params.Receipts}, nil
}

type receiptBackfillJob struct {
	logg     *logger.Logger
	receipts receiptBackfiller
}

func (j *receiptBackfillJob) Name() string { return "receipt-backfill" }

// Run fails only when nothing could be generated; partial failures stay on
// the payment rows and are picked up again next cycle.
func (j *receiptBackfillJob) Run(ctx context.Context) error {
	result, err := j.receipts.Backfill(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   result.Scanned,
		"generated": result.Generated,
		"failed":    result.Failed,
	})
	if err != nil && (result.Generated == 0 || ctx.Err() != nil) {
		return fmt.Errorf("receipt backfill: %w", err)
	}
	if err != nil {
		j.logg.Warn(logCtx, "receipt backfill partially failed")
		return nil
	}
	j.logg.Info(logCtx, "receipt backfill complete")
	return nil
}
