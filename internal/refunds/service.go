// Package refunds requests refunds of captured payments at the gateway. The
// refund row, ledger reversal and intent status are written by reconciliation
// once the gateway answers, exactly as for a refund webhook.
package refunds

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type gatewayLookup interface {
	Get(name string) (gateway.Gateway, error)
}

type recorder interface {
	RecordRefund(ctx context.Context, gw enums.GatewayName, rec gateway.RefundRecord) error
}

// Service exposes refund operations to the HTTP layer.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Refund, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error)
}

type ServiceParams struct {
	Repo     Repository
	Payments payments.Repository
	Gateways gatewayLookup
	Recorder recorder
	Logger   *logger.Logger
}

// RequestInput asks for a refund; a zero Amount refunds whatever remains.
type RequestInput struct {
	PaymentID      uuid.UUID
	Amount         decimal.Decimal
	Reason         string
	IdempotencyKey string
}

type service struct {
	repo     Repository
	payments payments.Repository
	gateways gatewayLookup
	recorder recorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("refund repo required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment repo required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("refund recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		payments: params.Payments,
		gateways: params.Gateways,
		recorder: params.Recorder,
		logg:     params.Logger,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.Refund, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	payment, err := s.payments.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.GatewayPaymentCaptured {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only captured payments can be refunded").
			WithDetails(map[string]string{"payment_id": payment.ID.String(), "status": payment.Status.String()})
	}
	if payment.Gateway == enums.GatewayManual {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual payments are not refunded through a gateway")
	}

	outstanding, err := s.repo.SumByPayment(ctx, payment.ID, enums.RefundStatusPending, enums.RefundStatusProcessed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum refunds")
	}
	refundable := payment.Amount.Sub(outstanding)
	if !refundable.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is already fully refunded")
	}
	amount := input.Amount
	if amount.IsZero() {
		amount = refundable
	}
	if amount.GreaterThan(refundable) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds refundable balance").
			WithDetails(map[string]string{"refundable": refundable.StringFixed(2)})
	}

	gw, err := s.gateways.Get(payment.Gateway.String())
	if err != nil {
		return nil, err
	}
	refundGateway, ok := gw.(gateway.RefundGateway)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("gateway %s does not support refunds", gw.Name()))
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":          payment.ID.String(),
		"external_payment_id": payment.ExternalPaymentID,
		"gateway":             gw.Name().String(),
		"amount":              amount.StringFixed(2),
	})
	idemKey := strings.TrimSpace(input.IdempotencyKey)
	if idemKey == "" {
		idemKey = fmt.Sprintf("refund_%s_%s", payment.ID, outstanding.StringFixed(2))
	}
	rec, err := refundGateway.Refund(logCtx, gateway.RefundRequest{
		ExternalPaymentID: payment.ExternalPaymentID,
		Amount:            amount,
		Currency:          payment.Currency,
		Reason:            strings.TrimSpace(input.Reason),
		IdempotencyKey:    idemKey,
		Notes:             map[string]string{"payment_id": payment.ID.String()},
	})
	if err != nil {
		s.logg.Error(logCtx, "refund.request_failed", err)
		code := pkgerrors.CodeOf(err)
		if !pkgerrors.IsRetryable(err) {
			code = pkgerrors.CodeDependency
		}
		return nil, pkgerrors.Wrap(code, err, "request gateway refund")
	}
	if rec.ExternalPaymentID == "" {
		rec.ExternalPaymentID = payment.ExternalPaymentID
	}
	if rec.Amount.IsZero() {
		rec.Amount = amount
	}
	if rec.Reason == "" {
		rec.Reason = strings.TrimSpace(input.Reason)
	}

	logCtx = s.logg.WithField(logCtx, "external_refund_id", rec.ExternalRefundID)
	if err := s.recorder.RecordRefund(logCtx, gw.Name(), *rec); err != nil {
		s.logg.Error(logCtx, "refund.record_failed", err)
		return nil, err
	}
	s.logg.Info(s.logg.WithField(logCtx, "refund_status", rec.Status.String()), "refund.requested")

	refund, err := s.repo.FindByExternalID(ctx, rec.ExternalRefundID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund")
	}
	if refund == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund was not recorded")
	}
	return refund, nil
}

func (s *service) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if _, err := s.payments.FindByID(ctx, paymentID); err != nil {
		return nil, err
	}
	refunds, err := s.repo.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list refunds")
	}
	return refunds, nil
}
