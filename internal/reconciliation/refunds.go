package reconciliation

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
)

// RefundEvent is one refund status report.
type RefundEvent struct {
	EventID string
	Refund  gateway.RefundRecord
	Raw     json.RawMessage
}

// ApplyRefundEvent records a refund and, once the gateway reports it
// processed, posts the offsetting ledger pair and moves the intent to
// PARTIALLY_REFUNDED or REFUNDED by the cumulative processed amount.
func (e *Engine) ApplyRefundEvent(ctx context.Context, gw enums.GatewayName, event RefundEvent) (Outcome, error) {
	rec := event.Refund
	if strings.TrimSpace(rec.ExternalRefundID) == "" || strings.TrimSpace(rec.ExternalPaymentID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund event needs refund and payment ids")
	}
	if !rec.Status.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund event has an unknown status")
	}

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"gateway":             gw.String(),
		"event_id":            event.EventID,
		"external_refund_id":  rec.ExternalRefundID,
		"external_payment_id": rec.ExternalPaymentID,
		"refund_status":       rec.Status.String(),
	})

	var outcome Outcome
	err := e.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		payment, err := e.payments.WithTx(tx).FindByExternalPaymentID(logCtx, rec.ExternalPaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refunded payment")
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "refunded payment not found")
		}
		intent, err := e.intents.WithTx(tx).FindByIDForUpdate(logCtx, payment.IntentID)
		if err != nil {
			return err
		}

		refundRepo := e.refunds.WithTx(tx)
		refund, err := refundRepo.FindByExternalID(logCtx, rec.ExternalRefundID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund")
		}

		if refund != nil && (refund.Status == rec.Status || refund.Status != enums.RefundStatusPending) {
			outcome = OutcomeDuplicate
			return nil
		}
		if rec.Status == enums.RefundStatusProcessed && !refundable(payment, intent) {
			// Held as pending; a processed report after the capture posts it.
			e.logg.Warn(e.logg.WithFields(logCtx, map[string]any{
				"intent_status":  intent.Status.String(),
				"payment_status": payment.Status.String(),
			}), "refund.payment_not_captured")
			outcome = OutcomeDiscarded
			if refund != nil {
				return nil
			}
			held := refundFromRecord(event, payment)
			held.Status = enums.RefundStatusPending
			return refundRepo.Create(logCtx, held)
		}

		if refund != nil {
			if err := refundRepo.UpdateStatus(logCtx, refund.ID, refund.Status, rec.Status); err != nil {
				return err
			}
			refund.Status = rec.Status
		} else {
			refund = refundFromRecord(event, payment)
			if err := refundRepo.Create(logCtx, refund); err != nil {
				return err
			}
		}

		outcome = OutcomeApplied
		if refund.Status != enums.RefundStatusProcessed {
			return nil
		}
		return e.postRefund(logCtx, tx, refund, payment, intent)
	})
	return e.finish(logCtx, gw, gateway.KindRefund, outcome, err)
}

func refundFromRecord(event RefundEvent, payment *models.Payment) *models.Refund {
	rec := event.Refund
	amount := rec.Amount
	if amount.IsZero() {
		amount = payment.Amount
	}
	currency := strings.ToUpper(strings.TrimSpace(rec.Currency))
	if currency == "" {
		currency = payment.Currency
	}
	raw := event.Raw
	if len(raw) == 0 {
		raw = rec.Raw
	}
	refund := &models.Refund{
		ExternalRefundID: rec.ExternalRefundID,
		PaymentID:        payment.ID,
		IntentID:         payment.IntentID,
		TenantID:         payment.TenantID,
		Amount:           amount,
		Currency:         currency,
		Status:           rec.Status,
		RawPayload:       raw,
	}
	if reason := strings.TrimSpace(rec.Reason); reason != "" {
		refund.Reason = &reason
	}
	return refund
}

func refundable(payment *models.Payment, intent *models.PaymentIntent) bool {
	return payment.Status == enums.GatewayPaymentCaptured && intent.Status.IsCaptured()
}

func (e *Engine) postRefund(ctx context.Context, tx *gorm.DB, refund *models.Refund, payment *models.Payment, intent *models.PaymentIntent) error {
	refunded, err := e.refunds.WithTx(tx).SumByPayment(ctx, payment.ID, enums.RefundStatusProcessed)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum refunds")
	}
	next := enums.IntentStatusPartiallyRefunded
	if refunded.GreaterThanOrEqual(payment.Amount) {
		next = enums.IntentStatusRefunded
		if refunded.GreaterThan(payment.Amount) {
			e.logg.Warn(e.logg.WithField(ctx, "refunded_total", refunded.String()), "refund.exceeds_payment")
		}
	}
	if intent.Status.CanTransitionTo(next) {
		if err := e.intents.WithTx(tx).UpdateStatus(ctx, intent.ID, intent.Status, next); err != nil {
			return err
		}
		intent.Status = next
	}

	txnID, err := e.ledger.PostRefund(ctx, tx, refund, intent)
	if err != nil {
		return err
	}
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRefunded,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		Subject:       intent.TenantID.String(),
		Data: payloads.PaymentRefundedEvent{
			IntentID:            intent.ID,
			PaymentID:           payment.ID,
			RefundID:            refund.ID,
			TenantID:            intent.TenantID,
			ExternalRefundID:    refund.ExternalRefundID,
			Amount:              refund.Amount,
			Currency:            refund.Currency,
			RefundedTotal:       refunded,
			IntentStatus:        intent.Status,
			LedgerTransactionID: txnID,
		},
	})
}

// RecordRefund applies a refund snapshot returned by a gateway call.
func (e *Engine) RecordRefund(ctx context.Context, gw enums.GatewayName, rec gateway.RefundRecord) error {
	_, err := e.ApplyRefundEvent(ctx, gw, RefundEvent{EventID: "request:" + rec.ExternalRefundID, Refund: rec})
	return err
}
