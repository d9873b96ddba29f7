// Package receipts renders payment receipts, stores them in GCS and records
// the served URL on the payment. Receipt failures never change payment state.
package receipts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/storage/gcs"
)

const contentTypeHTML = "text/html; charset=utf-8"

type ServiceParams struct {
	Payments payments.Repository
	Intents  intents.Repository
	Uploader gcs.Uploader
	Config   config.ReceiptsConfig
	Logger   *logger.Logger
	// Now is overridable in tests.
	Now func() time.Time
}

type Service struct {
	payments payments.Repository
	intents  intents.Repository
	uploader gcs.Uploader
	cfg      config.ReceiptsConfig
	logg     *logger.Logger
	now      func() time.Time
}

// BackfillResult summarises one backfill pass.
type BackfillResult struct {
	Scanned   int
	Generated int
	Failed    int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, fmt.Errorf("payment repo required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent repo required")
	}
	if params.Uploader == nil {
		return nil, fmt.Errorf("uploader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	cfg.Prefix = strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if cfg.Prefix == "" {
		cfg.Prefix = "receipts"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackfillBatch <= 0 {
		cfg.BackfillBatch = 100
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		payments: params.Payments,
		intents:  params.Intents,
		uploader: params.Uploader,
		cfg:      cfg,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// ObjectName is the storage path of a payment's receipt: <prefix>/YYYY/MM/receipt_<payment_id>.html.
func (s *Service) ObjectName(payment *models.Payment) string {
	at := payment.ProcessedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/receipt_%s.html", s.cfg.Prefix, at.Year(), int(at.Month()), payment.ID)
}

// Generate produces the receipt once; a payment that already has one keeps it.
func (s *Service) Generate(ctx context.Context, paymentID uuid.UUID) (string, error) {
	return s.generate(ctx, paymentID, false)
}

// Regenerate renders and uploads the receipt again, replacing the stored URL.
func (s *Service) Regenerate(ctx context.Context, paymentID uuid.UUID) (string, error) {
	return s.generate(ctx, paymentID, true)
}

func (s *Service) generate(ctx context.Context, paymentID uuid.UUID, force bool) (string, error) {
	if paymentID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if payment.Status != enums.GatewayPaymentCaptured {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "receipts are issued for captured payments only")
	}
	if !force && payment.ReceiptURL != nil && *payment.ReceiptURL != "" {
		return *payment.ReceiptURL, nil
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id": payment.ID.String(),
		"intent_id":  payment.IntentID.String(),
		"attempt":    payment.ReceiptAttempts + 1,
	})
	intent, err := s.intents.FindByID(logCtx, payment.IntentID)
	if err != nil {
		return "", s.fail(logCtx, payment, pkgerrors.Wrap(pkgerrors.CodeOf(err), err, "load intent for receipt"))
	}
	body, err := render(payment, intent)
	if err != nil {
		return "", s.fail(logCtx, payment, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render receipt"))
	}
	url, err := s.uploader.Upload(logCtx, s.ObjectName(payment), contentTypeHTML, body)
	if err != nil {
		return "", s.fail(logCtx, payment, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload receipt"))
	}
	if err := s.payments.SetReceipt(logCtx, payment.ID, url); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store receipt url")
	}
	s.logg.Info(s.logg.WithField(logCtx, "receipt_url", url), "receipt.generated")
	return url, nil
}

func (s *Service) fail(ctx context.Context, payment *models.Payment, cause error) error {
	s.logg.Error(ctx, "receipt.generation_failed", cause)
	if err := s.payments.RecordReceiptFailure(ctx, payment.ID, cause); err != nil {
		s.logg.Error(ctx, "receipt.record_failure_failed", err)
		return multierr.Append(cause, err)
	}
	return cause
}

// Backfill retries captured payments without a receipt that are older than the
// configured minimum age and still below the attempt limit.
func (s *Service) Backfill(ctx context.Context) (BackfillResult, error) {
	olderThan := s.now().UTC().Add(-s.cfg.BackfillMinAge)
	rows, err := s.payments.ListMissingReceipts(ctx, olderThan, s.cfg.MaxAttempts, s.cfg.BackfillBatch)
	if err != nil {
		return BackfillResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments missing receipts")
	}

	result := BackfillResult{Scanned: len(rows)}
	var errs error
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return result, multierr.Append(errs, err)
		}
		if _, err := s.Generate(ctx, rows[i].ID); err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", rows[i].ID, err))
			continue
		}
		result.Generated++
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned":   result.Scanned,
		"generated": result.Generated,
		"failed":    result.Failed,
	}), "receipt.backfill_completed")
	return result, errs
}

// List returns captured payments with their receipt state, newest first.
func (s *Service) List(ctx context.Context, filter payments.CapturedFilter) ([]models.Payment, error) {
	if filter.TenantID == uuid.Nil && filter.IntentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id or intent_id is required")
	}
	rows, err := s.payments.ListCaptured(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list receipts")
	}
	return rows, nil
}
