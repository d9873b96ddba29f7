package payments

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pgwallah/pgwallah-backend/api/responses"
	"github.com/pgwallah/pgwallah-backend/api/validators"
	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/internal/rent"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
	"github.com/pgwallah/pgwallah-backend/pkg/pagination"
)

const (
	maxRoomNoLen = 32
	maxNotesLen  = 500
)

type manualRecorder interface {
	RecordRent(ctx context.Context, input rent.RentInput) (*rent.RentRecord, error)
	RecordAdvance(ctx context.Context, input rent.AdvanceInput) (*rent.AdvanceRecord, error)
	ListRent(ctx context.Context, filter rent.RentFilter, params pagination.Params) (*pagination.Page[models.RentPayment], error)
	ListAdvance(ctx context.Context, filter rent.AdvanceFilter, params pagination.Params) (*pagination.Page[models.AdvancePayment], error)
}

type recordRentRequest struct {
	TenantID    uuid.UUID       `json:"tenant_id" validate:"required"`
	RoomNo      string          `json:"room_no" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"payment_method,omitempty"`
	DueDate     string          `json:"due_date,omitempty"`
	PaymentDate string          `json:"payment_date,omitempty"`
}

type recordAdvanceRequest struct {
	TenantID    uuid.UUID       `json:"tenant_id" validate:"required"`
	PGID        uuid.UUID       `json:"pg_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"payment_method,omitempty"`
	PaymentDate string          `json:"payment_date,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

type rentResponse struct {
	ID          uuid.UUID  `json:"id"`
	IntentID    uuid.UUID  `json:"intent_id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	RoomNo      string     `json:"room_no"`
	Amount      string     `json:"amount"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	PaymentDate time.Time  `json:"payment_date"`
	CreatedAt   time.Time  `json:"created_at"`
}

type advanceResponse struct {
	ID          uuid.UUID `json:"id"`
	IntentID    uuid.UUID `json:"intent_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	PGID        uuid.UUID `json:"pg_id"`
	Amount      string    `json:"amount"`
	PaymentDate time.Time `json:"payment_date"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type manualCaptureResponse struct {
	Intent              *intentResponse  `json:"intent"`
	Payment             *paymentResponse `json:"payment"`
	LedgerTransactionID string           `json:"ledger_transaction_id"`
}

type recordRentResponse struct {
	Rent rentResponse `json:"rent"`
	manualCaptureResponse
}

type recordAdvanceResponse struct {
	Advance advanceResponse `json:"advance"`
	manualCaptureResponse
}

func newRentResponse(row models.RentPayment) rentResponse {
	return rentResponse{
		ID:          row.ID,
		IntentID:    row.IntentID,
		TenantID:    row.TenantID,
		RoomNo:      row.RoomNo,
		Amount:      money.Format(row.Amount, "INR"),
		Status:      row.Status,
		DueDate:     row.DueDate,
		PaymentDate: row.PaymentDate,
		CreatedAt:   row.CreatedAt,
	}
}

func newAdvanceResponse(row models.AdvancePayment) advanceResponse {
	return advanceResponse{
		ID:          row.ID,
		IntentID:    row.IntentID,
		TenantID:    row.TenantID,
		PGID:        row.PGID,
		Amount:      money.Format(row.Amount, "INR"),
		PaymentDate: row.PaymentDate,
		Notes:       row.Notes,
		CreatedAt:   row.CreatedAt,
	}
}

func newManualCaptureResponse(capture *reconciliation.ManualCapture) manualCaptureResponse {
	if capture == nil {
		return manualCaptureResponse{}
	}
	return manualCaptureResponse{
		Intent:              newIntentResponse(capture.Intent),
		Payment:             newPaymentResponse(capture.Payment),
		LedgerTransactionID: capture.LedgerTransactionID,
	}
}

// RecordRent handles POST /payments/rent.
func RecordRent(svc manualRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload recordRentRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dueDate, err := parseDate("due_date", payload.DueDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paidAt, err := parseDate("payment_date", payload.PaymentDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RecordRent(r.Context(), rent.RentInput{
			TenantID:    payload.TenantID,
			RoomNo:      validators.SanitizeString(payload.RoomNo, maxRoomNoLen),
			Amount:      payload.Amount,
			Method:      enums.PaymentMethod(strings.ToLower(strings.TrimSpace(payload.Method))),
			DueDate:     dueDate,
			PaymentDate: paidAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, recordRentResponse{
			Rent:                  newRentResponse(*record.Rent),
			manualCaptureResponse: newManualCaptureResponse(record.Capture),
		})
	}
}

// RecordAdvance handles POST /payments/advance.
func RecordAdvance(svc manualRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload recordAdvanceRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paidAt, err := parseDate("payment_date", payload.PaymentDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RecordAdvance(r.Context(), rent.AdvanceInput{
			TenantID:    payload.TenantID,
			PGID:        payload.PGID,
			Amount:      payload.Amount,
			Method:      enums.PaymentMethod(strings.ToLower(strings.TrimSpace(payload.Method))),
			PaymentDate: paidAt,
			Notes:       validators.SanitizeString(payload.Notes, maxNotesLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, recordAdvanceResponse{
			Advance:               newAdvanceResponse(*record.Advance),
			manualCaptureResponse: newManualCaptureResponse(record.Capture),
		})
	}
}

// ListRent handles GET /payments/rent.
func ListRent(svc manualRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenantID, err := optionalQueryUUID(r, "tenant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, to, err := dateRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		page, err := svc.ListRent(r.Context(), rent.RentFilter{
			TenantID: tenantID,
			RoomNo:   strings.TrimSpace(query.Get("room_no")),
			Status:   strings.TrimSpace(query.Get("status")),
			From:     from,
			To:       to,
		}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := pageResponse[rentResponse]{Items: make([]rentResponse, 0, len(page.Items)), NextCursor: page.NextCursor}
		for _, row := range page.Items {
			out.Items = append(out.Items, newRentResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// ListAdvance handles GET /payments/advance.
func ListAdvance(svc manualRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenantID, err := optionalQueryUUID(r, "tenant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pgID, err := optionalQueryUUID(r, "pg_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, to, err := dateRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListAdvance(r.Context(), rent.AdvanceFilter{
			TenantID: tenantID,
			PGID:     pgID,
			From:     from,
			To:       to,
		}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := pageResponse[advanceResponse]{Items: make([]advanceResponse, 0, len(page.Items)), NextCursor: page.NextCursor}
		for _, row := range page.Items {
			out.Items = append(out.Items, newAdvanceResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func optionalQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	id, err := validators.ParseQueryUUID(r, key)
	if err != nil || id == uuid.Nil {
		return nil, err
	}
	return &id, nil
}

func dateRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
