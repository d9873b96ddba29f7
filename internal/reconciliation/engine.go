// Package reconciliation applies authenticated gateway events to local state
// exactly once. Every application runs in one database transaction holding a
// row lock on the intent or subscription; the intent status, the payment row,
// the ledger entries and the outbox event commit together or not at all.
package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/internal/ledger"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/internal/refunds"
	"github.com/pgwallah/pgwallah-backend/internal/subscriptions"
	"github.com/pgwallah/pgwallah-backend/pkg/db"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
)

// Outcome reports what an event application did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDiscarded Outcome = "discarded"
)

func (o Outcome) String() string {
	return string(o)
}

const manualPrefix = "manual_"

// idempotencyKeys are the constraints a racing writer of the same gateway
// object trips. Any other unique violation is a real failure.
var idempotencyKeys = []db.UniqueKey{
	{Constraint: "ux_payments_external_payment_id", Columns: "payments.external_payment_id"},
	{Constraint: "ux_subscription_charges_external_charge_id", Columns: "subscription_charges.external_charge_id"},
	{Constraint: "ux_refunds_external_refund_id", Columns: "refunds.external_refund_id"},
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayLookup interface {
	Get(name string) (gateway.Gateway, error)
}

// EngineParams groups dependencies for the reconciliation engine.
type EngineParams struct {
	TransactionRunner txRunner
	Intents           intents.Repository
	Payments          payments.Repository
	Subscriptions     subscriptions.Repository
	Refunds           refunds.Repository
	Ledger            ledger.Poster
	Outbox            outbox.Emitter
	Gateways          gatewayLookup
	Metrics           *metrics.ReconciliationMetrics
	Logger            *logger.Logger
}

// PaymentEvent is one payment status report, from a webhook or a client verify.
type PaymentEvent struct {
	EventID string
	Payment gateway.PaymentRecord
	// Raw is the verified body; the fetched record is stored when empty.
	Raw json.RawMessage
}

type Engine struct {
	tx            txRunner
	intents       intents.Repository
	payments      payments.Repository
	subscriptions subscriptions.Repository
	refunds       refunds.Repository
	ledger        ledger.Poster
	outbox        outbox.Emitter
	gateways      gatewayLookup
	metrics       *metrics.ReconciliationMetrics
	logg          *logger.Logger
}

// NewEngine validates and wires the engine dependencies.
func NewEngine(params EngineParams) (*Engine, error) {
	switch {
	case params.TransactionRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Intents == nil:
		return nil, fmt.Errorf("intent repo required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payment repo required")
	case params.Subscriptions == nil:
		return nil, fmt.Errorf("subscription repo required")
	case params.Refunds == nil:
		return nil, fmt.Errorf("refund repo required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger poster required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Gateways == nil:
		return nil, fmt.Errorf("gateway registry required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		tx:            params.TransactionRunner,
		intents:       params.Intents,
		payments:      params.Payments,
		subscriptions: params.Subscriptions,
		refunds:       params.Refunds,
		ledger:        params.Ledger,
		outbox:        params.Outbox,
		gateways:      params.Gateways,
		metrics:       params.Metrics,
		logg:          params.Logger,
	}, nil
}

// ApplyPaymentEvent applies one payment status report to the intent that owns
// its order. Redeliveries yield OutcomeDuplicate and regressions
// OutcomeDiscarded; both are successes with nothing written.
func (e *Engine) ApplyPaymentEvent(ctx context.Context, gw enums.GatewayName, event PaymentEvent) (Outcome, error) {
	rec := event.Payment
	if strings.TrimSpace(rec.ExternalOrderID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment event has no order id")
	}
	target, err := rec.Status.IntentStatus()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment event status")
	}
	if rec.Status != enums.GatewayPaymentFailed && strings.TrimSpace(rec.ExternalPaymentID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment event has no payment id")
	}

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"gateway":             gw.String(),
		"event_id":            event.EventID,
		"external_order_id":   rec.ExternalOrderID,
		"external_payment_id": rec.ExternalPaymentID,
		"payment_status":      rec.Status.String(),
	})

	var outcome Outcome
	err = e.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		intent, err := e.intents.WithTx(tx).FindByExternalOrderIDForUpdate(logCtx, rec.ExternalOrderID)
		if err != nil {
			return err
		}
		if rec.Status == enums.GatewayPaymentFailed {
			outcome, err = e.applyFailure(logCtx, tx, gw, event, intent)
			return err
		}
		outcome, err = e.applyPayment(logCtx, tx, gw, event, intent, target)
		return err
	})
	return e.finish(logCtx, gw, gateway.KindPayment, outcome, err)
}

// finish maps a racing writer's idempotency-key violation to a duplicate and
// records the outcome.
func (e *Engine) finish(ctx context.Context, gw enums.GatewayName, kind gateway.EventKind, outcome Outcome, err error) (Outcome, error) {
	if err != nil && db.IsUniqueViolationOf(err, idempotencyKeys...) {
		outcome, err = OutcomeDuplicate, nil
	}
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			e.logg.Warn(ctx, "reconciliation.target_not_found")
		} else {
			e.logg.Error(ctx, "reconciliation.failed", err)
		}
		e.metrics.IncOutcome(gw.String(), string(kind), "error")
		return "", err
	}
	e.metrics.IncOutcome(gw.String(), string(kind), outcome.String())
	e.logg.Info(e.logg.WithField(ctx, "outcome", outcome.String()), "reconciliation."+outcome.String())
	return outcome, nil
}

func (e *Engine) applyFailure(ctx context.Context, tx *gorm.DB, gw enums.GatewayName, event PaymentEvent, intent *models.PaymentIntent) (Outcome, error) {
	rec := event.Payment
	if intent.Status == enums.IntentStatusFailed {
		return OutcomeDuplicate, nil
	}
	if rec.ExternalPaymentID != "" {
		existing, err := e.payments.WithTx(tx).FindByExternalPaymentID(ctx, rec.ExternalPaymentID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
		}
		if existing != nil {
			return OutcomeDiscarded, nil
		}
	}
	if !intent.Status.CanTransitionTo(enums.IntentStatusFailed) {
		e.logg.Warn(e.logg.WithField(ctx, "intent_status", intent.Status.String()), "reconciliation.transition_rejected")
		return OutcomeDiscarded, nil
	}
	if err := e.intents.WithTx(tx).UpdateStatus(ctx, intent.ID, intent.Status, enums.IntentStatusFailed); err != nil {
		return "", err
	}

	return OutcomeApplied, e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		Subject:       intent.TenantID.String(),
		Data: payloads.PaymentFailedEvent{
			IntentID:          intent.ID,
			TenantID:          intent.TenantID,
			Gateway:           gw,
			ExternalOrderID:   rec.ExternalOrderID,
			ExternalPaymentID: rec.ExternalPaymentID,
			Amount:            intent.Amount,
			Currency:          intent.Currency,
			Purpose:           intent.Purpose,
			Reason:            event.EventID,
		},
	})
}

func (e *Engine) applyPayment(ctx context.Context, tx *gorm.DB, gw enums.GatewayName, event PaymentEvent, intent *models.PaymentIntent, target enums.IntentStatus) (Outcome, error) {
	rec := event.Payment
	paymentRepo := e.payments.WithTx(tx)

	existing, err := paymentRepo.FindByExternalPaymentID(ctx, rec.ExternalPaymentID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if existing != nil {
		if paymentRank(existing.Status) >= paymentRank(rec.Status) {
			return OutcomeDuplicate, nil
		}
		return e.upgradeToCaptured(ctx, tx, gw, existing, intent)
	}

	if intent.Status == enums.IntentStatusFailed || intent.Status == enums.IntentStatusCancelled || intent.Status.IsCaptured() {
		if rec.Status == enums.GatewayPaymentCaptured {
			e.metrics.IncOrphanCapture(gw.String())
			e.logg.Warn(e.logg.WithField(ctx, "intent_status", intent.Status.String()), "payment.orphan_capture")
		}
		return OutcomeDiscarded, nil
	}
	if intent.Status == target {
		return OutcomeDuplicate, nil
	}
	path, ok := intent.Status.PathTo(target)
	if !ok {
		e.logg.Warn(e.logg.WithField(ctx, "intent_status", intent.Status.String()), "reconciliation.transition_rejected")
		return OutcomeDiscarded, nil
	}

	payment := e.paymentFromRecord(ctx, gw, event, intent)
	if err := paymentRepo.Create(ctx, payment); err != nil {
		return "", err
	}
	if err := e.intents.WithTx(tx).UpdateStatus(ctx, intent.ID, intent.Status, target); err != nil {
		return "", err
	}
	e.logg.Debug(e.logg.WithField(ctx, "path", path), "reconciliation.intent_advanced")
	intent.Status = target

	if rec.Status != enums.GatewayPaymentCaptured {
		return OutcomeApplied, nil
	}
	if err := e.postCapture(ctx, tx, gw, payment, intent); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

// upgradeToCaptured handles a captured report for a payment recorded as authorized.
func (e *Engine) upgradeToCaptured(ctx context.Context, tx *gorm.DB, gw enums.GatewayName, payment *models.Payment, intent *models.PaymentIntent) (Outcome, error) {
	if !intent.Status.CanTransitionTo(enums.IntentStatusCaptured) {
		e.logg.Warn(e.logg.WithField(ctx, "intent_status", intent.Status.String()), "reconciliation.transition_rejected")
		return OutcomeDiscarded, nil
	}
	if err := e.payments.WithTx(tx).UpdateStatus(ctx, payment.ID, enums.GatewayPaymentAuthorized, enums.GatewayPaymentCaptured); err != nil {
		return "", err
	}
	payment.Status = enums.GatewayPaymentCaptured
	if err := e.intents.WithTx(tx).UpdateStatus(ctx, intent.ID, intent.Status, enums.IntentStatusCaptured); err != nil {
		return "", err
	}
	intent.Status = enums.IntentStatusCaptured
	if err := e.postCapture(ctx, tx, gw, payment, intent); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (e *Engine) paymentFromRecord(ctx context.Context, gw enums.GatewayName, event PaymentEvent, intent *models.PaymentIntent) *models.Payment {
	rec := event.Payment
	currency := strings.ToUpper(strings.TrimSpace(rec.Currency))
	if currency == "" {
		currency = intent.Currency
	}
	amount := rec.Amount
	if amount.IsZero() {
		amount = intent.Amount
	}
	if !amount.Equal(intent.Amount) || currency != intent.Currency {
		e.metrics.IncAmountMismatch(gw.String())
		e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
			"intent_amount":  intent.Amount.String(),
			"gateway_amount": amount.String(),
			"currency":       currency,
		}), "payment.amount_mismatch")
	}

	raw := event.Raw
	if len(raw) == 0 {
		raw = rec.Raw
	}
	method := rec.Method
	if !method.IsValid() {
		method = enums.PaymentMethodOther
	}
	payment := &models.Payment{
		ExternalPaymentID: rec.ExternalPaymentID,
		ExternalOrderID:   rec.ExternalOrderID,
		IntentID:          intent.ID,
		TenantID:          intent.TenantID,
		Gateway:           gw,
		Amount:            amount,
		Currency:          currency,
		Status:            rec.Status,
		Method:            method,
		Fee:               rec.Fee,
		Tax:               rec.Tax,
		RawPayload:        raw,
		ProcessedAt:       time.Now().UTC(),
	}
	if url := strings.TrimSpace(rec.ReceiptURL); url != "" {
		payment.ReceiptURL = &url
	}
	return payment
}

// postCapture writes the ledger pair and the payment.succeeded event in tx.
func (e *Engine) postCapture(ctx context.Context, tx *gorm.DB, gw enums.GatewayName, payment *models.Payment, intent *models.PaymentIntent) error {
	txnID, err := e.ledger.Post(ctx, tx, payment, intent)
	if err != nil {
		return err
	}
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		Subject:       intent.TenantID.String(),
		Data: payloads.PaymentSucceededEvent{
			IntentID:            intent.ID,
			PaymentID:           payment.ID,
			TenantID:            intent.TenantID,
			Gateway:             gw,
			ExternalOrderID:     payment.ExternalOrderID,
			ExternalPaymentID:   payment.ExternalPaymentID,
			Amount:              payment.Amount,
			Currency:            payment.Currency,
			Purpose:             intent.Purpose,
			Method:              payment.Method,
			LedgerTransactionID: txnID,
			CapturedAt:          payment.ProcessedAt,
		},
	})
}

func paymentRank(status enums.GatewayPaymentStatus) int {
	switch status {
	case enums.GatewayPaymentAuthorized:
		return 1
	case enums.GatewayPaymentCaptured:
		return 2
	default:
		return 0
	}
}

// VerifyInput is a client-side payment confirmation.
type VerifyInput struct {
	Gateway   string
	OrderID   string
	PaymentID string
	Signature string
}

// Verify authenticates a client confirmation, re-fetches the payment from the
// gateway outside any transaction and applies it like a webhook delivery.
func (e *Engine) Verify(ctx context.Context, input VerifyInput) (Outcome, *models.PaymentIntent, error) {
	orderID := strings.TrimSpace(input.OrderID)
	paymentID := strings.TrimSpace(input.PaymentID)
	if orderID == "" || paymentID == "" || strings.TrimSpace(input.Signature) == "" {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id, payment_id and signature are required")
	}
	gw, err := e.gateways.Get(input.Gateway)
	if err != nil {
		return "", nil, err
	}

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"gateway":             gw.Name().String(),
		"external_order_id":   orderID,
		"external_payment_id": paymentID,
	})
	if !gw.VerifyClientSignature(orderID, paymentID, input.Signature) {
		e.logg.Warn(logCtx, "verify.signature_invalid")
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}

	intent, err := e.intents.FindByExternalOrderID(logCtx, orderID)
	if err != nil {
		return "", nil, err
	}
	if intent.Gateway != gw.Name() {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "order belongs to a different gateway")
	}

	record, err := gw.FetchPayment(logCtx, paymentID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			e.logg.Warn(logCtx, "verify.payment_incomplete")
			return "", nil, err
		}
		e.logg.Error(logCtx, "verify.fetch_failed", err)
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetch payment from gateway")
	}
	if record.ExternalOrderID != "" && record.ExternalOrderID != orderID {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to order")
	}
	record.ExternalOrderID = orderID
	if record.ExternalPaymentID == "" {
		record.ExternalPaymentID = paymentID
	}

	outcome, err := e.ApplyPaymentEvent(logCtx, gw.Name(), PaymentEvent{
		EventID: "verify:" + paymentID,
		Payment: *record,
	})
	if err != nil {
		return "", nil, err
	}
	current, err := e.intents.FindByID(logCtx, intent.ID)
	if err != nil {
		return "", nil, err
	}
	return outcome, current, nil
}

// CancelIntent moves an intent to CANCELLED. Cancelling twice is a no-op and
// captured intents cannot be cancelled.
func (e *Engine) CancelIntent(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error) {
	if intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id is required")
	}
	var intent *models.PaymentIntent
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.intents.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, intentID)
		if err != nil {
			return err
		}
		intent = current
		if current.Status == enums.IntentStatusCancelled {
			return nil
		}
		if !current.Status.CanTransitionTo(enums.IntentStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "intent can no longer be cancelled").
				WithDetails(map[string]string{"intent_id": current.ID.String(), "status": current.Status.String()})
		}
		if err := repo.UpdateStatus(ctx, current.ID, current.Status, enums.IntentStatusCancelled); err != nil {
			return err
		}
		current.Status = enums.IntentStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logg.Info(e.logg.WithField(ctx, "intent_id", intentID.String()), "intent.cancelled")
	return intent, nil
}

// ManualCaptureInput describes money collected outside any gateway.
type ManualCaptureInput struct {
	TenantID    uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Purpose     enums.PaymentPurpose
	Method      enums.PaymentMethod
	Description string
	DueDate     *time.Time
	PaidAt      time.Time
}

// ManualCapture is the state written by RecordManualCapture.
type ManualCapture struct {
	Intent              *models.PaymentIntent
	Payment             *models.Payment
	LedgerTransactionID string
}

// RecordManualCapture creates a CAPTURED intent, its payment and ledger pair
// in one transaction. afterCapture runs inside the same transaction so callers
// can add their own rows and events.
func (e *Engine) RecordManualCapture(ctx context.Context, input ManualCaptureInput, afterCapture func(tx *gorm.DB, capture *ManualCapture) error) (*ManualCapture, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Purpose.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purpose %q", input.Purpose))
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "INR"
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	method := input.Method
	if !method.IsValid() {
		method = enums.PaymentMethodCash
	}

	intentID := uuid.New()
	orderID := manualPrefix + "order_" + intentID.String()
	intent := &models.PaymentIntent{
		ID:              intentID,
		ExternalOrderID: &orderID,
		Gateway:         enums.GatewayManual,
		TenantID:        input.TenantID,
		Amount:          input.Amount,
		Currency:        currency,
		Purpose:         input.Purpose,
		Status:          enums.IntentStatusCreated,
		DueDate:         input.DueDate,
		ReceiptKey:      intents.ReceiptKey(input.Purpose, intentID),
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		intent.Description = &desc
	}
	payment := &models.Payment{
		ExternalPaymentID: manualPrefix + uuid.NewString(),
		ExternalOrderID:   orderID,
		IntentID:          intentID,
		TenantID:          input.TenantID,
		Gateway:           enums.GatewayManual,
		Amount:            input.Amount,
		Currency:          currency,
		Status:            enums.GatewayPaymentCaptured,
		Method:            method,
		ProcessedAt:       paidAt,
	}

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"gateway":             enums.GatewayManual.String(),
		"intent_id":           intentID.String(),
		"tenant_id":           input.TenantID.String(),
		"external_payment_id": payment.ExternalPaymentID,
	})

	capture := &ManualCapture{Intent: intent, Payment: payment}
	err := e.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		intentRepo := e.intents.WithTx(tx)
		if err := intentRepo.Create(logCtx, intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create manual intent")
		}
		if err := e.payments.WithTx(tx).Create(logCtx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create manual payment")
		}
		if err := intentRepo.UpdateStatus(logCtx, intent.ID, enums.IntentStatusCreated, enums.IntentStatusCaptured); err != nil {
			return err
		}
		intent.Status = enums.IntentStatusCaptured

		if err := e.postCapture(logCtx, tx, enums.GatewayManual, payment, intent); err != nil {
			return err
		}
		capture.LedgerTransactionID = ledger.PaymentTransactionID(payment.ExternalPaymentID)
		if afterCapture != nil {
			return afterCapture(tx, capture)
		}
		return nil
	})
	if err != nil {
		e.logg.Error(logCtx, "payment.manual_capture_failed", err)
		e.metrics.IncOutcome(enums.GatewayManual.String(), string(gateway.KindPayment), "error")
		return nil, err
	}
	e.metrics.IncOutcome(enums.GatewayManual.String(), string(gateway.KindPayment), OutcomeApplied.String())
	e.logg.Info(logCtx, "payment.manual_captured")
	return capture, nil
}

var errUnknownKind = errors.New("unsupported webhook event kind")

// ApplyWebhookEvent dispatches a parsed delivery to the matching apply path.
func (e *Engine) ApplyWebhookEvent(ctx context.Context, gw enums.GatewayName, event *gateway.WebhookEvent) (Outcome, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook event is empty")
	}
	switch event.Kind {
	case gateway.KindPayment:
		if event.Payment == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "payment event without payment")
		}
		return e.ApplyPaymentEvent(ctx, gw, PaymentEvent{EventID: event.EventID, Payment: *event.Payment, Raw: event.Raw})
	case gateway.KindSubscription:
		if event.Subscription == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription event without subscription")
		}
		return e.ApplySubscriptionEvent(ctx, gw, SubscriptionEvent{EventID: event.EventID, EventType: event.EventType, Subscription: *event.Subscription})
	case gateway.KindRefund:
		if event.Refund == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "refund event without refund")
		}
		return e.ApplyRefundEvent(ctx, gw, RefundEvent{EventID: event.EventID, Refund: *event.Refund, Raw: event.Raw})
	case gateway.KindIgnored:
		e.metrics.IncOutcome(gw.String(), string(event.Kind), OutcomeDiscarded.String())
		return OutcomeDiscarded, nil
	default:
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, errUnknownKind, string(event.Kind))
	}
}
