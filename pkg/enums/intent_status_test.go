package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentStatusDirectTransitions(t *testing.T) {
	cases := []struct {
		from, to IntentStatus
		allowed  bool
	}{
		{IntentStatusCreated, IntentStatusPending, true},
		{IntentStatusPending, IntentStatusAuthorized, true},
		{IntentStatusPending, IntentStatusFailed, true},
		{IntentStatusAuthorized, IntentStatusCaptured, true},
		{IntentStatusCaptured, IntentStatusRefunded, true},
		{IntentStatusCaptured, IntentStatusPartiallyRefunded, true},
		{IntentStatusAuthorized, IntentStatusCancelled, true},
		{IntentStatusCaptured, IntentStatusCancelled, false},
		{IntentStatusCaptured, IntentStatusAuthorized, false},
		{IntentStatusFailed, IntentStatusCaptured, false},
		{IntentStatusAuthorized, IntentStatusFailed, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIntentStatusPathTo(t *testing.T) {
	path, ok := IntentStatusPending.PathTo(IntentStatusCaptured)
	require.True(t, ok)
	require.Equal(t, []IntentStatus{IntentStatusAuthorized, IntentStatusCaptured}, path)

	path, ok = IntentStatusCreated.PathTo(IntentStatusCaptured)
	require.True(t, ok)
	require.Equal(t, []IntentStatus{IntentStatusPending, IntentStatusAuthorized, IntentStatusCaptured}, path)

	_, ok = IntentStatusCaptured.PathTo(IntentStatusAuthorized)
	require.False(t, ok, "captured must never regress to authorized")

	_, ok = IntentStatusCaptured.PathTo(IntentStatusCaptured)
	require.False(t, ok, "same status is not a transition")

	_, ok = IntentStatusFailed.PathTo(IntentStatusCaptured)
	require.False(t, ok)
}

func TestIntentStatusTerminal(t *testing.T) {
	for _, status := range []IntentStatus{IntentStatusFailed, IntentStatusCaptured, IntentStatusRefunded, IntentStatusCancelled} {
		assert.Truef(t, status.IsTerminal(), "%s should be terminal", status)
	}
	for _, status := range []IntentStatus{IntentStatusCreated, IntentStatusPending, IntentStatusAuthorized, IntentStatusPartiallyRefunded} {
		assert.Falsef(t, status.IsTerminal(), "%s should not be terminal", status)
	}
}

func TestParseIntentStatus(t *testing.T) {
	status, err := ParseIntentStatus("CAPTURED")
	require.NoError(t, err)
	require.Equal(t, IntentStatusCaptured, status)

	_, err = ParseIntentStatus("captured")
	require.Error(t, err)
}

func TestSubscriptionTransitions(t *testing.T) {
	assert.True(t, SubscriptionStatusCreated.CanTransitionTo(SubscriptionStatusAuthenticated))
	assert.True(t, SubscriptionStatusActive.CanTransitionTo(SubscriptionStatusPaused))
	assert.True(t, SubscriptionStatusPaused.CanTransitionTo(SubscriptionStatusActive))
	assert.True(t, SubscriptionStatusHalted.CanTransitionTo(SubscriptionStatusActive))
	assert.False(t, SubscriptionStatusCancelled.CanTransitionTo(SubscriptionStatusActive))
	assert.False(t, SubscriptionStatusCompleted.CanTransitionTo(SubscriptionStatusActive))
	assert.True(t, SubscriptionStatusCancelled.IsTerminal())
}

func TestRevenueAccountFor(t *testing.T) {
	assert.Equal(t, AccountRentRevenue, RevenueAccountFor(PurposeRent))
	assert.Equal(t, AccountSecurityDeposits, RevenueAccountFor(PurposeDeposit))
	assert.Equal(t, AccountMessRevenue, RevenueAccountFor(PurposeMess))
	assert.Equal(t, AccountOtherRevenue, RevenueAccountFor(PurposeMaintenance))
	assert.Equal(t, AccountOtherRevenue, RevenueAccountFor(PurposeOther))
}

func TestNormalizePaymentMethod(t *testing.T) {
	assert.Equal(t, PaymentMethodUPI, NormalizePaymentMethod("UPI"))
	assert.Equal(t, PaymentMethodCard, NormalizePaymentMethod("CARD"))
	assert.Equal(t, PaymentMethodNetbanking, NormalizePaymentMethod("BANK_ACCOUNT"))
	assert.Equal(t, PaymentMethodOther, NormalizePaymentMethod("paylater"))
}

func TestParsePaymentPurpose(t *testing.T) {
	purpose, err := ParsePaymentPurpose(" Rent ")
	require.NoError(t, err)
	require.Equal(t, PurposeRent, purpose)
	_, err = ParsePaymentPurpose("laundry")
	require.Error(t, err)
}
