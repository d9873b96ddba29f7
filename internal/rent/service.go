// Package rent records rent and advance collections taken outside any payment
// gateway. Each one books a CAPTURED intent through the same capture and
// ledger path as gateway payments.
package rent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox"
	"github.com/pgwallah/pgwallah-backend/pkg/outbox/payloads"
	"github.com/pgwallah/pgwallah-backend/pkg/pagination"
)

const maxRoomNoLen = 50

type capturer interface {
	RecordManualCapture(ctx context.Context, input reconciliation.ManualCaptureInput, afterCapture func(tx *gorm.DB, capture *reconciliation.ManualCapture) error) (*reconciliation.ManualCapture, error)
}

type ServiceParams struct {
	Repo     *Repository
	Capturer capturer
	Outbox   outbox.Emitter
	Limits   config.AmountLimits
	Logger   *logger.Logger
}

type Service struct {
	repo     *Repository
	capturer capturer
	outbox   outbox.Emitter
	limits   config.AmountLimits
	logg     *logger.Logger
}

// RentInput is a rent collection for one room.
type RentInput struct {
	TenantID    uuid.UUID
	RoomNo      string
	Amount      decimal.Decimal
	Method      enums.PaymentMethod
	DueDate     *time.Time
	PaymentDate *time.Time
}

// AdvanceInput is an advance paid toward a PG before move-in.
type AdvanceInput struct {
	TenantID    uuid.UUID
	PGID        uuid.UUID
	Amount      decimal.Decimal
	Method      enums.PaymentMethod
	PaymentDate *time.Time
	Notes       string
}

// RentRecord is everything written for one rent collection.
type RentRecord struct {
	Rent    *models.RentPayment
	Capture *reconciliation.ManualCapture
}

// AdvanceRecord is everything written for one advance collection.
type AdvanceRecord struct {
	Advance *models.AdvancePayment
	Capture *reconciliation.ManualCapture
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("rent repo required")
	}
	if params.Capturer == nil {
		return nil, fmt.Errorf("capturer required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:     params.Repo,
		capturer: params.Capturer,
		outbox:   params.Outbox,
		limits:   params.Limits,
		logg:     params.Logger,
	}, nil
}

func (s *Service) checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !s.limits.Max.IsZero() && (amount.LessThan(s.limits.Min) || amount.GreaterThan(s.limits.Max)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount outside allowed range").
			WithDetails(map[string]string{"min": s.limits.Min.String(), "max": s.limits.Max.String()})
	}
	if _, err := money.ToMinorUnits(amount, "INR"); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount precision")
	}
	return nil
}

func paymentTime(at *time.Time) time.Time {
	if at == nil || at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}

// RecordRent captures a rent payment and stores its rent row in one transaction.
func (s *Service) RecordRent(ctx context.Context, input RentInput) (*RentRecord, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required")
	}
	room := strings.TrimSpace(input.RoomNo)
	if room == "" || len(room) > maxRoomNoLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("room_no must be 1 to %d characters", maxRoomNoLen))
	}
	if err := s.checkAmount(input.Amount); err != nil {
		return nil, err
	}
	paidAt := paymentTime(input.PaymentDate)

	record := &RentRecord{}
	capture, err := s.capturer.RecordManualCapture(ctx, reconciliation.ManualCaptureInput{
		TenantID:    input.TenantID,
		Amount:      input.Amount,
		Purpose:     enums.PurposeRent,
		Method:      input.Method,
		Description: "Rent payment for room " + room,
		DueDate:     input.DueDate,
		PaidAt:      paidAt,
	}, func(tx *gorm.DB, capture *reconciliation.ManualCapture) error {
		row := &models.RentPayment{
			IntentID:    capture.Intent.ID,
			TenantID:    input.TenantID,
			RoomNo:      room,
			Amount:      capture.Payment.Amount,
			Status:      enums.IntentStatusCaptured.String(),
			DueDate:     input.DueDate,
			PaymentDate: paidAt,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.repo.WithTx(tx).CreateRent(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create rent payment")
		}
		record.Rent = row
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRentPaymentRecorded,
			AggregateType: enums.AggregateRentPayment,
			AggregateID:   row.ID,
			Subject:       input.TenantID.String(),
			Data: payloads.RentPaymentRecordedEvent{
				RentPaymentID:       row.ID,
				IntentID:            capture.Intent.ID,
				PaymentID:           capture.Payment.ID,
				TenantID:            input.TenantID,
				RoomNo:              room,
				Amount:              row.Amount,
				LedgerTransactionID: capture.LedgerTransactionID,
				PaymentDate:         paidAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	record.Capture = capture

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":       input.TenantID.String(),
		"rent_payment_id": record.Rent.ID.String(),
		"intent_id":       capture.Intent.ID.String(),
		"room_no":         room,
	}), "rent.payment_recorded")
	return record, nil
}

// RecordAdvance captures an advance as a deposit and stores its advance row.
func (s *Service) RecordAdvance(ctx context.Context, input AdvanceInput) (*AdvanceRecord, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required")
	}
	if input.PGID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pg_id is required")
	}
	if err := s.checkAmount(input.Amount); err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(input.Notes)
	if len(notes) > 500 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes must be at most 500 characters")
	}
	paidAt := paymentTime(input.PaymentDate)

	record := &AdvanceRecord{}
	capture, err := s.capturer.RecordManualCapture(ctx, reconciliation.ManualCaptureInput{
		TenantID:    input.TenantID,
		Amount:      input.Amount,
		Purpose:     enums.PurposeDeposit,
		Method:      input.Method,
		Description: "Advance payment for PG " + input.PGID.String(),
		PaidAt:      paidAt,
	}, func(tx *gorm.DB, capture *reconciliation.ManualCapture) error {
		row := &models.AdvancePayment{
			IntentID:    capture.Intent.ID,
			TenantID:    input.TenantID,
			PGID:        input.PGID,
			Amount:      capture.Payment.Amount,
			PaymentDate: paidAt,
			CreatedAt:   time.Now().UTC(),
		}
		if notes != "" {
			row.Notes = &notes
		}
		if err := s.repo.WithTx(tx).CreateAdvance(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create advance payment")
		}
		record.Advance = row
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdvancePaymentRecorded,
			AggregateType: enums.AggregateAdvancePayment,
			AggregateID:   row.ID,
			Subject:       input.TenantID.String(),
			Data: payloads.AdvancePaymentRecordedEvent{
				AdvancePaymentID:    row.ID,
				IntentID:            capture.Intent.ID,
				PaymentID:           capture.Payment.ID,
				TenantID:            input.TenantID,
				PGID:                input.PGID,
				Amount:              row.Amount,
				LedgerTransactionID: capture.LedgerTransactionID,
				PaymentDate:         paidAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	record.Capture = capture

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":          input.TenantID.String(),
		"advance_payment_id": record.Advance.ID.String(),
		"intent_id":          capture.Intent.ID.String(),
		"pg_id":              input.PGID.String(),
	}), "advance.payment_recorded")
	return record, nil
}

func (s *Service) ListRent(ctx context.Context, filter RentFilter, params pagination.Params) (*pagination.Page[models.RentPayment], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListRent(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list rent payments")
	}
	page := pagination.Trim(rows, params.Limit, func(r models.RentPayment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return &page, nil
}

func (s *Service) ListAdvance(ctx context.Context, filter AdvanceFilter, params pagination.Params) (*pagination.Page[models.AdvancePayment], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListAdvance(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list advance payments")
	}
	page := pagination.Trim(rows, params.Limit, func(a models.AdvancePayment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	return &page, nil
}
