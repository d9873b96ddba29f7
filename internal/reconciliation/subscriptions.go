package reconciliation

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
)

// SubscriptionEvent is one subscription report, optionally carrying a charge.
type SubscriptionEvent struct {
	EventID      string
	EventType    string
	Subscription gateway.SubscriptionRecord
}

// ApplySubscriptionEvent records a recurring charge at most once and moves the
// subscription along its state machine. Charges are recorded even on a
// terminal subscription because the money has already moved; status changes
// out of a terminal state are discarded.
func (e *Engine) ApplySubscriptionEvent(ctx context.Context, gw enums.GatewayName, event SubscriptionEvent) (Outcome, error) {
	rec := event.Subscription
	if strings.TrimSpace(rec.ExternalSubscriptionID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription event has no subscription id")
	}
	if rec.Status != "" && !rec.Status.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription event has an unknown status")
	}

	fields := map[string]any{
		"gateway":                  gw.String(),
		"event_id":                 event.EventID,
		"event_type":               event.EventType,
		"external_subscription_id": rec.ExternalSubscriptionID,
	}
	if rec.Charge != nil {
		fields["external_charge_id"] = rec.Charge.ExternalChargeID
	}
	logCtx := e.logg.WithFields(ctx, fields)

	var outcome Outcome
	err := e.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := e.subscriptions.WithTx(tx)
		sub, err := repo.FindByExternalIDForUpdate(logCtx, rec.ExternalSubscriptionID)
		if err != nil {
			return err
		}

		charged, err := e.applyCharge(logCtx, tx, sub, rec.Charge)
		if err != nil {
			return err
		}
		moved, rejected, err := e.applySubscriptionStatus(logCtx, tx, sub, rec.Status)
		if err != nil {
			return err
		}
		refreshed := refreshSchedule(sub, rec)

		if charged || moved || refreshed {
			if err := repo.Save(logCtx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save subscription")
			}
		}
		switch {
		case charged || moved:
			outcome = OutcomeApplied
		case rejected:
			outcome = OutcomeDiscarded
		default:
			outcome = OutcomeDuplicate
		}
		return nil
	})
	return e.finish(logCtx, gw, gateway.KindSubscription, outcome, err)
}

// applyCharge inserts the charge row once. A racing insert fails on the unique
// external charge id and finish reports it as a duplicate.
func (e *Engine) applyCharge(ctx context.Context, tx *gorm.DB, sub *models.Subscription, rec *gateway.ChargeRecord) (bool, error) {
	if rec == nil {
		return false, nil
	}
	if strings.TrimSpace(rec.ExternalChargeID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "subscription charge has no id")
	}
	repo := e.subscriptions.WithTx(tx)
	existing, err := repo.FindChargeByExternalID(ctx, rec.ExternalChargeID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription charge")
	}
	if existing != nil {
		return false, nil
	}

	amount := rec.Amount
	if amount.IsZero() {
		amount = sub.Amount
	}
	currency := strings.ToUpper(strings.TrimSpace(rec.Currency))
	if currency == "" {
		currency = sub.Currency
	}
	chargedAt := rec.ChargedAt
	if chargedAt.IsZero() {
		chargedAt = time.Now().UTC()
	}
	charge := &models.SubscriptionCharge{
		SubscriptionID:   sub.ID,
		ExternalChargeID: rec.ExternalChargeID,
		TenantID:         sub.TenantID,
		Amount:           amount,
		Currency:         currency,
		RawPayload:       rec.Raw,
		ChargedAt:        chargedAt,
	}
	if err := repo.CreateCharge(ctx, charge); err != nil {
		return false, err
	}
	sub.RecordCharge()

	txnID, err := e.ledger.PostSubscriptionCharge(ctx, tx, charge, sub)
	if err != nil {
		return false, err
	}
	return true, e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionCharged,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Subject:       sub.TenantID.String(),
		Data: payloads.SubscriptionChargedEvent{
			SubscriptionID:         sub.ID,
			ChargeID:               charge.ID,
			TenantID:               sub.TenantID,
			ExternalSubscriptionID: sub.ExternalSubscriptionID,
			ExternalChargeID:       charge.ExternalChargeID,
			Amount:                 charge.Amount,
			Currency:               charge.Currency,
			PaidCount:              sub.PaidCount,
			RemainingCount:         sub.RemainingCount,
			LedgerTransactionID:    txnID,
		},
	})
}

func (e *Engine) applySubscriptionStatus(ctx context.Context, tx *gorm.DB, sub *models.Subscription, next enums.SubscriptionStatus) (moved, rejected bool, err error) {
	if next == "" || next == sub.Status {
		return false, false, nil
	}
	if sub.Status.IsTerminal() || !sub.Status.CanTransitionTo(next) {
		e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
			"from": sub.Status.String(),
			"to":   next.String(),
		}), "subscription.transition_rejected")
		return false, true, nil
	}

	from := sub.Status
	sub.Status = next
	return true, false, e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionStatusChanged,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Subject:       sub.TenantID.String(),
		Data: payloads.SubscriptionStatusChangedEvent{
			SubscriptionID:         sub.ID,
			TenantID:               sub.TenantID,
			ExternalSubscriptionID: sub.ExternalSubscriptionID,
			From:                   from,
			To:                     next,
		},
	})
}

// refreshSchedule copies billing-cycle fields reported by the gateway. Counters
// are never taken from the gateway.
func refreshSchedule(sub *models.Subscription, rec gateway.SubscriptionRecord) bool {
	changed := false
	setTime := func(dst **time.Time, src *time.Time) {
		if src == nil {
			return
		}
		if *dst == nil || !(*dst).Equal(*src) {
			t := *src
			*dst = &t
			changed = true
		}
	}
	setTime(&sub.StartAt, rec.StartAt)
	setTime(&sub.EndAt, rec.EndAt)
	setTime(&sub.CurrentStart, rec.CurrentStart)
	setTime(&sub.CurrentEnd, rec.CurrentEnd)
	setTime(&sub.ChargeAt, rec.ChargeAt)
	if sub.TotalCount == nil && rec.TotalCount != nil {
		total := *rec.TotalCount
		sub.TotalCount = &total
		remaining := total - sub.PaidCount
		if remaining < 0 {
			remaining = 0
		}
		sub.RemainingCount = &remaining
		changed = true
	}
	return changed
}

// SyncSubscription applies a subscription snapshot returned by a gateway call.
func (e *Engine) SyncSubscription(ctx context.Context, gw enums.GatewayName, rec gateway.SubscriptionRecord) error {
	_, err := e.ApplySubscriptionEvent(ctx, gw, SubscriptionEvent{
		EventID:      "sync:" + rec.ExternalSubscriptionID,
		EventType:    "subscription.sync",
		Subscription: rec,
	})
	return err
}
