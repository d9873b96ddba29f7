package ledger

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pgwallah/pgwallah-backend/api/responses"
	"github.com/pgwallah/pgwallah-backend/api/validators"
	"github.com/pgwallah/pgwallah-backend/internal/ledger"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
)

type reader interface {
	Balances(ctx context.Context, tenantID uuid.UUID) ([]ledger.Balance, error)
	Transaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
}

type balanceResponse struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Debit    string `json:"debit"`
	Credit   string `json:"credit"`
	Balance  string `json:"balance"`
}

type entryResponse struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	TransactionID string    `json:"transaction_id"`
	Account       string    `json:"account"`
	Debit         string    `json:"debit"`
	Credit        string    `json:"credit"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   uuid.UUID `json:"reference_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Balances handles GET /ledger/balances?tenant_id=.
func Balances(svc reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseQueryUUID(r, "tenant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required"))
			return
		}
		rows, err := svc.Balances(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]balanceResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, balanceResponse{
				Account:  row.Account.String(),
				Currency: row.Currency,
				Debit:    money.Format(row.Debit, row.Currency),
				Credit:   money.Format(row.Credit, row.Currency),
				Balance:  money.Format(row.Balance, row.Currency),
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// Transaction handles GET /ledger/transactions/{transactionID}.
func Transaction(svc reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID := strings.TrimSpace(chi.URLParam(r, "transactionID"))
		if transactionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required"))
			return
		}
		entries, err := svc.Transaction(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]entryResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, entryResponse{
				ID:            entry.ID,
				TenantID:      entry.TenantID,
				TransactionID: entry.TransactionID,
				Account:       entry.Account.String(),
				Debit:         money.Format(entry.Debit, entry.Currency),
				Credit:        money.Format(entry.Credit, entry.Currency),
				Currency:      entry.Currency,
				Description:   entry.Description,
				ReferenceType: entry.ReferenceType.String(),
				ReferenceID:   entry.ReferenceID,
				CreatedAt:     entry.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
