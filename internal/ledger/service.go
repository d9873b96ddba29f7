// Package ledger posts double-entry transactions. Every transaction is
// validated to balance before any line is written, and balances are always
// derived from the entries rather than kept as counters.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

const (
	paymentPrefix            = "PAY_"
	refundPrefix             = "RFND_"
	subscriptionChargePrefix = "SUB_"
)

// Line is one side of a posting. Exactly one of Debit and Credit is positive.
type Line struct {
	Account enums.LedgerAccount
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// Transaction groups the lines that must balance.
type Transaction struct {
	ID            string
	TenantID      uuid.UUID
	Currency      string
	Description   string
	ReferenceType enums.LedgerReferenceType
	ReferenceID   uuid.UUID
	Lines         []Line
}

// Balance is the derived position of one account.
type Balance struct {
	Account  enums.LedgerAccount `json:"account"`
	Currency string              `json:"currency"`
	Debit    decimal.Decimal     `json:"debit"`
	Credit   decimal.Decimal     `json:"credit"`
	Balance  decimal.Decimal     `json:"balance"`
}

// Poster is the ledger surface used by the reconciliation engine and readers.
type Poster interface {
	Post(ctx context.Context, tx *gorm.DB, payment *models.Payment, intent *models.PaymentIntent) (string, error)
	PostRefund(ctx context.Context, tx *gorm.DB, refund *models.Refund, intent *models.PaymentIntent) (string, error)
	PostSubscriptionCharge(ctx context.Context, tx *gorm.DB, charge *models.SubscriptionCharge, sub *models.Subscription) (string, error)
	PostEntries(ctx context.Context, tx *gorm.DB, txn Transaction) error
	Balances(ctx context.Context, tenantID uuid.UUID) ([]Balance, error)
	Transaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger poster with the provided repository.
func NewService(repo Repository) (Poster, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// PaymentTransactionID is the ledger transaction a captured payment posts under.
func PaymentTransactionID(externalPaymentID string) string {
	return paymentPrefix + externalPaymentID
}

// Post records the capture of payment: debit cash_and_bank, credit the
// revenue account selected by the intent purpose.
func (s *service) Post(ctx context.Context, tx *gorm.DB, payment *models.Payment, intent *models.PaymentIntent) (string, error) {
	if payment == nil || intent == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "payment and intent are required to post")
	}
	txn := Transaction{
		ID:            PaymentTransactionID(payment.ExternalPaymentID),
		TenantID:      intent.TenantID,
		Currency:      payment.Currency,
		Description:   fmt.Sprintf("%s payment %s", intent.Purpose, payment.ExternalPaymentID),
		ReferenceType: enums.LedgerRefPayment,
		ReferenceID:   payment.ID,
		Lines: []Line{
			{Account: enums.AccountCashAndBank, Debit: payment.Amount},
			{Account: enums.RevenueAccountFor(intent.Purpose), Credit: payment.Amount},
		},
	}
	if payment.Gateway == enums.GatewayManual {
		txn.ReferenceType = enums.LedgerRefManual
	}
	if err := s.PostEntries(ctx, tx, txn); err != nil {
		return "", err
	}
	return txn.ID, nil
}

// PostRefund reverses revenue for a processed refund.
func (s *service) PostRefund(ctx context.Context, tx *gorm.DB, refund *models.Refund, intent *models.PaymentIntent) (string, error) {
	if refund == nil || intent == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "refund and intent are required to post")
	}
	txn := Transaction{
		ID:            refundPrefix + refund.ExternalRefundID,
		TenantID:      intent.TenantID,
		Currency:      refund.Currency,
		Description:   fmt.Sprintf("refund %s of %s payment", refund.ExternalRefundID, intent.Purpose),
		ReferenceType: enums.LedgerRefRefund,
		ReferenceID:   refund.ID,
		Lines: []Line{
			{Account: enums.RevenueAccountFor(intent.Purpose), Debit: refund.Amount},
			{Account: enums.AccountCashAndBank, Credit: refund.Amount},
		},
	}
	if err := s.PostEntries(ctx, tx, txn); err != nil {
		return "", err
	}
	return txn.ID, nil
}

func (s *service) PostSubscriptionCharge(ctx context.Context, tx *gorm.DB, charge *models.SubscriptionCharge, sub *models.Subscription) (string, error) {
	if charge == nil || sub == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "charge and subscription are required to post")
	}
	txn := Transaction{
		ID:            subscriptionChargePrefix + charge.ExternalChargeID,
		TenantID:      sub.TenantID,
		Currency:      charge.Currency,
		Description:   fmt.Sprintf("subscription %s charge %s", sub.ExternalSubscriptionID, charge.ExternalChargeID),
		ReferenceType: enums.LedgerRefSubscriptionCharge,
		ReferenceID:   charge.ID,
		Lines: []Line{
			{Account: enums.AccountCashAndBank, Debit: charge.Amount},
			{Account: enums.RevenueAccountFor(sub.Purpose), Credit: charge.Amount},
		},
	}
	if err := s.PostEntries(ctx, tx, txn); err != nil {
		return "", err
	}
	return txn.ID, nil
}

// PostEntries validates txn and inserts its lines with tx. Any validation
// failure is fatal for the caller's transaction. A transaction id is posted
// once; lines are never appended to an existing transaction.
func (s *service) PostEntries(ctx context.Context, tx *gorm.DB, txn Transaction) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger posting requires a transaction")
	}
	if err := validate(txn); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	posted, err := repo.HasTransaction(ctx, txn.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ledger transaction")
	}
	if posted {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("ledger transaction %s already posted", txn.ID))
	}

	currency := strings.ToUpper(txn.Currency)
	entries := make([]models.LedgerEntry, 0, len(txn.Lines))
	for _, line := range txn.Lines {
		entries = append(entries, models.LedgerEntry{
			TenantID:      txn.TenantID,
			TransactionID: txn.ID,
			Account:       line.Account,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Currency:      currency,
			Description:   txn.Description,
			ReferenceType: txn.ReferenceType,
			ReferenceID:   txn.ReferenceID,
		})
	}
	if err := repo.CreateEntries(ctx, entries); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert ledger entries")
	}
	return nil
}

func validate(txn Transaction) error {
	if strings.TrimSpace(txn.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger transaction id is required")
	}
	if txn.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger tenant id is required")
	}
	if txn.ReferenceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger reference id is required")
	}
	if strings.TrimSpace(txn.Currency) == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger currency is required")
	}
	if len(txn.Lines) < 2 {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger transaction needs at least two lines")
	}

	debits, credits := decimal.Zero, decimal.Zero
	seen := make(map[enums.LedgerAccount]bool, len(txn.Lines))
	for _, line := range txn.Lines {
		if !line.Account.IsValid() {
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown ledger account %q", line.Account))
		}
		if seen[line.Account] {
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("account %s appears twice in %s", line.Account, txn.ID))
		}
		seen[line.Account] = true

		debitSet := line.Debit.IsPositive()
		creditSet := line.Credit.IsPositive()
		if debitSet == creditSet || line.Debit.IsNegative() || line.Credit.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("line %s must carry exactly one positive side", line.Account))
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger transaction does not balance").
			WithDetails(map[string]string{
				"transaction_id": txn.ID,
				"debits":         debits.String(),
				"credits":        credits.String(),
			})
	}
	return nil
}

// Balances derives per-account positions (debits minus credits) for a tenant.
func (s *service) Balances(ctx context.Context, tenantID uuid.UUID) ([]Balance, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	totals, err := s.repo.SumByAccount(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum ledger entries")
	}
	balances := make([]Balance, 0, len(totals))
	for _, t := range totals {
		balances = append(balances, Balance{
			Account:  t.Account,
			Currency: t.Currency,
			Debit:    t.Debit,
			Credit:   t.Credit,
			Balance:  t.Debit.Sub(t.Credit),
		})
	}
	return balances, nil
}

func (s *service) Transaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	entries, err := s.repo.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ledger transaction")
	}
	if len(entries) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger transaction not found")
	}
	return entries, nil
}
