package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/internal/subscriptions"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

func (env testEnv) seedSubscription(t *testing.T, externalID string, status enums.SubscriptionStatus, total int) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ExternalSubscriptionID: externalID,
		Gateway:                enums.GatewayRazorpay,
		PlanID:                 "plan_monthly_rent",
		TenantID:               uuid.New(),
		Amount:                 decimal.NewFromInt(7000),
		Currency:               "INR",
		Purpose:                enums.PurposeRent,
		Status:                 status,
		TotalCount:             &total,
		RemainingCount:         &total,
	}
	require.NoError(t, subscriptions.NewRepository(env.conn).Create(context.Background(), sub))
	return sub
}

func (env testEnv) reloadSubscription(t *testing.T, id uuid.UUID) *models.Subscription {
	t.Helper()
	sub, err := subscriptions.NewRepository(env.conn).FindByID(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func chargedEvent(externalID, chargeID string) SubscriptionEvent {
	return SubscriptionEvent{
		EventID:   "evt_" + chargeID,
		EventType: "subscription.charged",
		Subscription: gateway.SubscriptionRecord{
			ExternalSubscriptionID: externalID,
			Status:                 enums.SubscriptionStatusActive,
			Charge: &gateway.ChargeRecord{
				ExternalChargeID: chargeID,
				Amount:           decimal.NewFromInt(7000),
				Currency:         "INR",
				ChargedAt:        time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestSubscriptionChargedTwiceCountsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.seedSubscription(t, "sub_D", enums.SubscriptionStatusActive, 12)
	event := chargedEvent("sub_D", "pay_sub_D1")

	outcome, err := env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	outcome, err = env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	reloaded := env.reloadSubscription(t, sub.ID)
	assert.Equal(t, 1, reloaded.PaidCount)
	require.NotNil(t, reloaded.RemainingCount)
	assert.Equal(t, 11, *reloaded.RemainingCount)
	assert.Equal(t, int64(1), env.count(t, &models.SubscriptionCharge{}, ""))
	assert.Equal(t, int64(2), env.count(t, &models.LedgerEntry{}, "transaction_id = ?", "SUB_pay_sub_D1"))
	assert.Equal(t, int64(1), env.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventSubscriptionCharged))
	assertBalanced(t, env, sub.TenantID)

	outcome, err = env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, chargedEvent("sub_D", "pay_sub_D2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, 2, env.reloadSubscription(t, sub.ID).PaidCount)
}

func TestSubscriptionStatusMoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.seedSubscription(t, "sub_S", enums.SubscriptionStatusCreated, 6)
	chargeAt := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	outcome, err := env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, SubscriptionEvent{
		EventID: "evt_auth",
		Subscription: gateway.SubscriptionRecord{
			ExternalSubscriptionID: "sub_S",
			Status:                 enums.SubscriptionStatusAuthenticated,
			ChargeAt:               &chargeAt,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	reloaded := env.reloadSubscription(t, sub.ID)
	assert.Equal(t, enums.SubscriptionStatusAuthenticated, reloaded.Status)
	require.NotNil(t, reloaded.ChargeAt)
	assert.True(t, reloaded.ChargeAt.Equal(chargeAt))
	assert.Equal(t, int64(1), env.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventSubscriptionStatusChanged))

	outcome, err = env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, SubscriptionEvent{
		EventID:      "evt_auth_again",
		Subscription: gateway.SubscriptionRecord{ExternalSubscriptionID: "sub_S", Status: enums.SubscriptionStatusAuthenticated},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	outcome, err = env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, SubscriptionEvent{
		EventID:      "evt_paused",
		Subscription: gateway.SubscriptionRecord{ExternalSubscriptionID: "sub_S", Status: enums.SubscriptionStatusPaused},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, outcome)
	assert.Equal(t, enums.SubscriptionStatusAuthenticated, env.reloadSubscription(t, sub.ID).Status)
}

func TestTerminalSubscriptionStillRecordsCharge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.seedSubscription(t, "sub_T", enums.SubscriptionStatusCancelled, 3)

	outcome, err := env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, chargedEvent("sub_T", "pay_sub_T1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	reloaded := env.reloadSubscription(t, sub.ID)
	assert.Equal(t, enums.SubscriptionStatusCancelled, reloaded.Status)
	assert.Equal(t, 1, reloaded.PaidCount)
	assert.Zero(t, env.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventSubscriptionStatusChanged))
}

func TestApplySubscriptionEventErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, chargedEvent("sub_missing", "pay_x"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, SubscriptionEvent{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.engine.ApplySubscriptionEvent(ctx, enums.GatewayRazorpay, SubscriptionEvent{
		Subscription: gateway.SubscriptionRecord{ExternalSubscriptionID: "sub_x", Status: "expired"},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSyncSubscriptionFillsSchedule(t *testing.T) {
	env := newTestEnv(t)
	sub := env.seedSubscription(t, "sub_Y", enums.SubscriptionStatusCreated, 0)
	sub.TotalCount = nil
	sub.RemainingCount = nil
	require.NoError(t, subscriptions.NewRepository(env.conn).Save(context.Background(), sub))

	total := 10
	require.NoError(t, env.engine.SyncSubscription(context.Background(), enums.GatewayRazorpay, gateway.SubscriptionRecord{
		ExternalSubscriptionID: "sub_Y",
		Status:                 enums.SubscriptionStatusActive,
		TotalCount:             &total,
	}))

	reloaded := env.reloadSubscription(t, sub.ID)
	assert.Equal(t, enums.SubscriptionStatusActive, reloaded.Status)
	require.NotNil(t, reloaded.TotalCount)
	assert.Equal(t, 10, *reloaded.TotalCount)
	require.NotNil(t, reloaded.RemainingCount)
	assert.Equal(t, 10, *reloaded.RemainingCount)
}
