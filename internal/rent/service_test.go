package rent

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/internal/gateway/gatewaytest"
	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/internal/ledger"
	"github.com/pgwallah/pgwallah-backend/internal/payments"
	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/internal/refunds"
	"github.com/pgwallah/pgwallah-backend/internal/repo/repotest"
	"github.com/pgwallah/pgwallah-backend/internal/subscriptions"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/metrics"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/pagination"
)

type rentFixture struct {
	svc    *Service
	conn   *gorm.DB
	poster ledger.Poster
}

func newRentFixture(t *testing.T) rentFixture {
	t.Helper()
	conn := repotest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	registry, err := gateway.NewRegistry("razorpay", gatewaytest.New(enums.GatewayRazorpay, "secret"))
	require.NoError(t, err)
	poster, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	engine, err := reconciliation.NewEngine(reconciliation.EngineParams{
		TransactionRunner: db.FromGorm(conn),
		Intents:           intents.NewRepository(conn),
		Payments:          payments.NewRepository(conn),
		Subscriptions:     subscriptions.NewRepository(conn),
		Refunds:           refunds.NewRepository(conn),
		Ledger:            poster,
		Outbox:            emitter,
		Gateways:          registry,
		Metrics:           metrics.NewReconciliationMetrics(prometheus.NewRegistry()),
		Logger:            logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Capturer: engine,
		Outbox:   emitter,
		Limits:   config.AmountLimits{Min: decimal.NewFromInt(1), Max: decimal.NewFromInt(500000)},
		Logger:   logg,
	})
	require.NoError(t, err)
	return rentFixture{svc: svc, conn: conn, poster: poster}
}

func (f rentFixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestRecordRentCapturesAndBooksLedger(t *testing.T) {
	f := newRentFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	record, err := f.svc.RecordRent(ctx, RentInput{
		TenantID: tenantID,
		RoomNo:   " G-12 ",
		Amount:   decimal.NewFromInt(3000),
	})
	require.NoError(t, err)

	assert.Equal(t, "G-12", record.Rent.RoomNo)
	assert.Equal(t, enums.IntentStatusCaptured, record.Capture.Intent.Status)
	assert.Equal(t, record.Capture.Intent.ID, record.Rent.IntentID)
	assert.Equal(t, int64(1), f.count(t, &models.RentPayment{}, ""))
	assert.Equal(t, int64(1), f.count(t, &models.Payment{}, "intent_id = ?", record.Capture.Intent.ID))

	entries, err := f.poster.Transaction(ctx, record.Capture.LedgerTransactionID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	assert.True(t, debit.Equal(decimal.NewFromInt(3000)))
	assert.True(t, credit.Equal(decimal.NewFromInt(3000)))

	var event models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventRentPaymentRecorded).First(&event).Error)
	assert.Equal(t, record.Rent.ID, event.AggregateID)
	assert.Contains(t, string(event.Payload), `"room_no":"G-12"`)
	assert.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentSucceeded))
}

func TestRecordAdvancePostsToDeposits(t *testing.T) {
	f := newRentFixture(t)
	ctx := context.Background()
	tenantID, pgID := uuid.New(), uuid.New()

	record, err := f.svc.RecordAdvance(ctx, AdvanceInput{
		TenantID: tenantID,
		PGID:     pgID,
		Amount:   decimal.RequireFromString("5000.50"),
		Method:   enums.PaymentMethodUPI,
		Notes:    "two months advance",
	})
	require.NoError(t, err)
	require.NotNil(t, record.Advance.Notes)
	assert.Equal(t, pgID, record.Advance.PGID)
	assert.Equal(t, enums.PaymentMethodUPI, record.Capture.Payment.Method)

	balances, err := f.poster.Balances(ctx, tenantID)
	require.NoError(t, err)
	byAccount := map[enums.LedgerAccount]decimal.Decimal{}
	for _, b := range balances {
		byAccount[b.Account] = b.Balance
	}
	assert.True(t, byAccount[enums.AccountSecurityDeposits].Equal(decimal.RequireFromString("-5000.50")))
	assert.True(t, byAccount[enums.AccountCashAndBank].Equal(decimal.RequireFromString("5000.50")))
	assert.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventAdvancePaymentRecorded))
}

func TestRecordRentValidation(t *testing.T) {
	f := newRentFixture(t)
	ctx := context.Background()

	cases := map[string]RentInput{
		"tenant":    {RoomNo: "A1", Amount: decimal.NewFromInt(10)},
		"room":      {TenantID: uuid.New(), RoomNo: " ", Amount: decimal.NewFromInt(10)},
		"zero":      {TenantID: uuid.New(), RoomNo: "A1"},
		"too large": {TenantID: uuid.New(), RoomNo: "A1", Amount: decimal.NewFromInt(600000)},
		"precision": {TenantID: uuid.New(), RoomNo: "A1", Amount: decimal.RequireFromString("10.005")},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.RecordRent(ctx, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
	assert.Zero(t, f.count(t, &models.PaymentIntent{}, ""))

	_, err := f.svc.RecordAdvance(ctx, AdvanceInput{TenantID: uuid.New(), Amount: decimal.NewFromInt(10)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListRentFiltersAndPages(t *testing.T) {
	f := newRentFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	paidAt := time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)

	for _, room := range []string{"G-12", "G-14", "F-01"} {
		_, err := f.svc.RecordRent(ctx, RentInput{TenantID: tenantID, RoomNo: room, Amount: decimal.NewFromInt(3000), PaymentDate: &paidAt})
		require.NoError(t, err)
	}
	_, err := f.svc.RecordRent(ctx, RentInput{TenantID: uuid.New(), RoomNo: "G-12", Amount: decimal.NewFromInt(3000)})
	require.NoError(t, err)

	page, err := f.svc.ListRent(ctx, RentFilter{TenantID: &tenantID, RoomNo: "g-1"}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)

	next, err := f.svc.ListRent(ctx, RentFilter{TenantID: &tenantID, RoomNo: "g-1"}, pagination.Params{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)
	assert.NotEqual(t, page.Items[0].ID, next.Items[0].ID)

	from := paidAt.Add(time.Hour)
	recent, err := f.svc.ListRent(ctx, RentFilter{From: &from}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, recent.Items, 1)

	_, err = f.svc.ListRent(ctx, RentFilter{}, pagination.Params{Cursor: "not-a-cursor!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
