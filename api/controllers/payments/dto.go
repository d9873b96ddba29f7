package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
)

type intentResponse struct {
	ID              uuid.UUID  `json:"id"`
	ExternalOrderID *string    `json:"external_order_id"`
	Gateway         string     `json:"gateway"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Purpose         string     `json:"purpose"`
	Status          string     `json:"status"`
	Description     *string    `json:"description,omitempty"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	RedirectHandle  *string    `json:"redirect_handle"`
	CreatedAt       time.Time  `json:"created_at"`
}

type paymentResponse struct {
	ID                uuid.UUID `json:"id"`
	ExternalPaymentID string    `json:"external_payment_id"`
	ExternalOrderID   string    `json:"external_order_id"`
	IntentID          uuid.UUID `json:"intent_id"`
	TenantID          uuid.UUID `json:"tenant_id"`
	Gateway           string    `json:"gateway"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	Method            string    `json:"method"`
	Fee               string    `json:"fee"`
	Tax               string    `json:"tax"`
	ReceiptURL        *string   `json:"receipt_url"`
	ProcessedAt       time.Time `json:"processed_at"`
}

type refundResponse struct {
	ID               uuid.UUID `json:"id"`
	ExternalRefundID string    `json:"external_refund_id"`
	PaymentID        uuid.UUID `json:"payment_id"`
	IntentID         uuid.UUID `json:"intent_id"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	Reason           *string   `json:"reason,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type receiptResponse struct {
	PaymentID       uuid.UUID `json:"payment_id"`
	IntentID        uuid.UUID `json:"intent_id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	ReceiptURL      *string   `json:"receipt_url"`
	ReceiptAttempts int       `json:"receipt_attempts"`
	ReceiptError    *string   `json:"receipt_error,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
}

type pageResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func newIntentResponse(intent *models.PaymentIntent) *intentResponse {
	if intent == nil {
		return nil
	}
	return &intentResponse{
		ID:              intent.ID,
		ExternalOrderID: intent.ExternalOrderID,
		Gateway:         intent.Gateway.String(),
		TenantID:        intent.TenantID,
		Amount:          money.Format(intent.Amount, intent.Currency),
		Currency:        intent.Currency,
		Purpose:         intent.Purpose.String(),
		Status:          intent.Status.String(),
		Description:     intent.Description,
		BookingID:       intent.BookingID,
		DueDate:         intent.DueDate,
		RedirectHandle:  intent.RedirectHandle,
		CreatedAt:       intent.CreatedAt,
	}
}

func newPaymentResponse(payment *models.Payment) *paymentResponse {
	if payment == nil {
		return nil
	}
	return &paymentResponse{
		ID:                payment.ID,
		ExternalPaymentID: payment.ExternalPaymentID,
		ExternalOrderID:   payment.ExternalOrderID,
		IntentID:          payment.IntentID,
		TenantID:          payment.TenantID,
		Gateway:           payment.Gateway.String(),
		Amount:            money.Format(payment.Amount, payment.Currency),
		Currency:          payment.Currency,
		Status:            payment.Status.String(),
		Method:            payment.Method.String(),
		Fee:               money.Format(payment.Fee, payment.Currency),
		Tax:               money.Format(payment.Tax, payment.Currency),
		ReceiptURL:        payment.ReceiptURL,
		ProcessedAt:       payment.ProcessedAt,
	}
}

func newPaymentResponses(rows []models.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *newPaymentResponse(&rows[i]))
	}
	return out
}

func newRefundResponse(refund *models.Refund) *refundResponse {
	if refund == nil {
		return nil
	}
	return &refundResponse{
		ID:               refund.ID,
		ExternalRefundID: refund.ExternalRefundID,
		PaymentID:        refund.PaymentID,
		IntentID:         refund.IntentID,
		Amount:           money.Format(refund.Amount, refund.Currency),
		Currency:         refund.Currency,
		Reason:           refund.Reason,
		Status:           refund.Status.String(),
		CreatedAt:        refund.CreatedAt,
	}
}

func newReceiptResponse(payment models.Payment) receiptResponse {
	return receiptResponse{
		PaymentID:       payment.ID,
		IntentID:        payment.IntentID,
		TenantID:        payment.TenantID,
		Amount:          money.Format(payment.Amount, payment.Currency),
		Currency:        payment.Currency,
		ReceiptURL:      payment.ReceiptURL,
		ReceiptAttempts: payment.ReceiptAttempts,
		ReceiptError:    payment.ReceiptError,
		ProcessedAt:     payment.ProcessedAt,
	}
}
