package reconciliation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

func refundEvent(refundID, paymentID, amount string, status enums.RefundStatus) RefundEvent {
	return RefundEvent{
		EventID: "evt_" + refundID + "_" + status.String(),
		Refund: gateway.RefundRecord{
			ExternalRefundID:  refundID,
			ExternalPaymentID: paymentID,
			Amount:            decimal.RequireFromString(amount),
			Currency:          "INR",
			Status:            status,
		},
	}
}

func (env testEnv) seedCapturedIntent(t *testing.T, orderID, paymentID, amount string) *models.PaymentIntent {
	t.Helper()
	intent := env.seedPendingIntent(t, orderID, amount, enums.PurposeRent)
	outcome, err := env.engine.ApplyPaymentEvent(context.Background(), enums.GatewayRazorpay, paymentEvent(orderID, paymentID, enums.GatewayPaymentCaptured, amount))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	return intent
}

func TestPartialThenFullRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	intent := env.seedCapturedIntent(t, "order_R", "pay_R", "1000")

	outcome, err := env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd_1", "pay_R", "400", enums.RefundStatusProcessed))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, enums.IntentStatusPartiallyRefunded, env.intentStatus(t, intent.ID))

	outcome, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd_1", "pay_R", "400", enums.RefundStatusProcessed))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	outcome, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd_2", "pay_R", "600", enums.RefundStatusProcessed))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, enums.IntentStatusRefunded, env.intentStatus(t, intent.ID))

	assert.Equal(t, int64(2), env.count(t, &models.Refund{}, ""))
	assert.Equal(t, int64(2), env.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentRefunded))
	assert.Equal(t, int64(2), env.count(t, &models.LedgerEntry{}, "transaction_id = ?", "RFND_rfnd_2"))

	balances, err := env.poster.Balances(ctx, intent.TenantID)
	require.NoError(t, err)
	for _, b := range balances {
		assert.True(t, b.Balance.IsZero(), "account %s should be zero, got %s", b.Account, b.Balance)
	}
}

func TestPendingRefundPostsOnlyWhenProcessed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	intent := env.seedCapturedIntent(t, "order_P", "pay_P", "500")

	outcome, err := env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd_P", "pay_P", "500", enums.RefundStatusPending))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, enums.IntentStatusCaptured, env.intentStatus(t, intent.ID))
	assert.Zero(t, env.count(t, &models.LedgerEntry{}, "transaction_id = ?", "RFND_rfnd_P"))

	outcome, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd_P", "pay_P", "500", enums.RefundStatusProcessed))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, enums.IntentStatusRefunded, env.intentStatus(t, intent.ID))
	assert.Equal(t, int64(2), env.count(t, &models.LedgerEntry{}, "transaction_id = ?", "RFND_rfnd_P"))

	outcome, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd_P", "pay_P", "500", enums.RefundStatusPending))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, int64(1), env.count(t, &models.Refund{}, "status = ?", enums.RefundStatusProcessed))
}

func TestRefundForUncapturedPaymentIsHeldUntilCapture(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	intent := env.seedPendingIntent(t, "order_U", "500", enums.PurposeRent)
	_, err := env.engine.ApplyPaymentEvent(ctx, enums.GatewayRazorpay, paymentEvent("order_U", "pay_U", enums.GatewayPaymentAuthorized, "500"))
	require.NoError(t, err)
	processed := refundEvent("rfnd_U", "pay_U", "500", enums.RefundStatusProcessed)

	outcome, err := env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, processed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, outcome)
	assert.Equal(t, int64(1), env.count(t, &models.Refund{}, "status = ?", enums.RefundStatusPending))
	assert.Zero(t, env.count(t, &models.LedgerEntry{}, ""))
	assert.Equal(t, enums.IntentStatusAuthorized, env.intentStatus(t, intent.ID))

	outcome, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, processed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, outcome)
	assert.Equal(t, int64(1), env.count(t, &models.Refund{}, ""))

	_, err = env.engine.ApplyPaymentEvent(ctx, enums.GatewayRazorpay, paymentEvent("order_U", "pay_U", enums.GatewayPaymentCaptured, "500"))
	require.NoError(t, err)

	outcome, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, processed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, int64(1), env.count(t, &models.Refund{}, "status = ?", enums.RefundStatusProcessed))
	assert.Equal(t, enums.IntentStatusRefunded, env.intentStatus(t, intent.ID))
	assertBalanced(t, env, intent.TenantID)
}

func TestApplyRefundEventErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd_x", "pay_missing", "1", enums.RefundStatusProcessed))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("", "pay", "1", enums.RefundStatusProcessed))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.engine.ApplyRefundEvent(ctx, enums.GatewayRazorpay, refundEvent("rfnd", "pay", "1", "reversed"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordRefund(t *testing.T) {
	env := newTestEnv(t)
	intent := env.seedCapturedIntent(t, "order_Q", "pay_Q", "800")

	err := env.engine.RecordRefund(context.Background(), enums.GatewayRazorpay, gateway.RefundRecord{
		ExternalRefundID:  "rfnd_Q",
		ExternalPaymentID: "pay_Q",
		Amount:            decimal.NewFromInt(200),
		Status:            enums.RefundStatusProcessed,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusPartiallyRefunded, env.intentStatus(t, intent.ID))
}
