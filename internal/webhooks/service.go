// Package webhooks authenticates inbound gateway deliveries and hands them to
// the reconciliation engine.
package webhooks

import (
	"context"
	"net/http"
	"strings"

	"github.com/pgwallah/pgwallah-backend/internal/gateway"
	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

// EventIDHeader carries the delivery id on Razorpay webhooks.
const EventIDHeader = "X-Razorpay-Event-Id"

type gatewayLookup interface {
	Get(name string) (gateway.Gateway, error)
}

type applier interface {
	ApplyWebhookEvent(ctx context.Context, gw enums.GatewayName, event *gateway.WebhookEvent) (reconciliation.Outcome, error)
}

type eventGuard interface {
	Seen(ctx context.Context, gateway, eventID string) (bool, error)
	MarkApplied(ctx context.Context, gateway, eventID string) error
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Gateways gatewayLookup
	Engine   applier
	Guard    eventGuard
	Logger   *logger.Logger
	// SignatureBypass skips verification outside production.
	SignatureBypass bool
}

// Delivery is one inbound webhook request.
type Delivery struct {
	Gateway string
	Header  http.Header
	Body    []byte
}

type Service struct {
	gateways gatewayLookup
	engine   applier
	guard    eventGuard
	logg     *logger.Logger
	bypass   bool
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Gateways == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry required")
	}
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation engine required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		gateways: params.Gateways,
		engine:   params.Engine,
		guard:    params.Guard,
		logg:     params.Logger,
		bypass:   params.SignatureBypass,
	}, nil
}

// Handle verifies and applies one delivery. Redeliveries of an applied event
// return OutcomeDuplicate.
func (s *Service) Handle(ctx context.Context, delivery Delivery) (reconciliation.Outcome, error) {
	if strings.TrimSpace(delivery.Gateway) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "gateway is required")
	}
	gw, err := s.gateways.Get(delivery.Gateway)
	if err != nil {
		return "", err
	}
	name := gw.Name()
	ctx = s.logg.WithGateway(ctx, name.String())
	headerID := strings.TrimSpace(delivery.Header.Get(EventIDHeader))
	if headerID != "" {
		ctx = s.logg.WithField(ctx, "event_id", headerID)
	}

	if len(delivery.Body) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook body is empty")
	}
	if err := s.authenticate(ctx, gw, delivery); err != nil {
		return "", err
	}

	event, err := gw.ParseWebhook(delivery.Body)
	if err != nil {
		s.logg.Error(ctx, "webhook.parse_failed", err)
		return "", err
	}
	if headerID != "" && name == enums.GatewayRazorpay {
		event.EventID = headerID
	}
	ctx = s.logg.WithFields(ctx, eventFields(event))

	seen, err := s.guard.Seen(ctx, name.String(), event.EventID)
	if err != nil {
		// The database constraints still dedupe, so a cache outage only costs the fast path.
		s.logg.Warn(ctx, "webhook.guard_unavailable")
	} else if seen {
		s.logg.Info(ctx, "webhook.duplicate_delivery")
		return reconciliation.OutcomeDuplicate, nil
	}

	// Concurrent deliveries may both get here; the engine's row lock and
	// unique constraints let exactly one of them write.
	outcome, err := s.engine.ApplyWebhookEvent(ctx, name, event)
	if err != nil {
		s.logg.Error(ctx, "webhook.apply_failed", err)
		return "", err
	}
	if err := s.guard.MarkApplied(ctx, name.String(), event.EventID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook.guard_mark_failed")
	}
	s.logg.Info(s.logg.WithField(ctx, "outcome", outcome.String()), "webhook.processed")
	return outcome, nil
}

func (s *Service) authenticate(ctx context.Context, gw gateway.Gateway, delivery Delivery) error {
	signature := strings.TrimSpace(delivery.Header.Get(gw.SignatureHeader()))
	if s.bypass {
		s.logg.Warn(ctx, "webhook.signature_bypassed")
		return nil
	}
	if signature == "" || !gw.VerifyWebhookSignature(delivery.Body, signature) {
		err := pkgerrors.New(pkgerrors.CodeSignatureInvalid, "webhook signature verification failed")
		s.logg.Error(ctx, "webhook.signature_invalid", err)
		return err
	}
	s.logg.Info(ctx, "webhook.signature_verified")
	return nil
}

func eventFields(event *gateway.WebhookEvent) map[string]any {
	fields := map[string]any{
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"event_kind": string(event.Kind),
	}
	switch {
	case event.Payment != nil:
		fields["external_order_id"] = event.Payment.ExternalOrderID
		fields["external_payment_id"] = event.Payment.ExternalPaymentID
	case event.Subscription != nil:
		fields["external_subscription_id"] = event.Subscription.ExternalSubscriptionID
	case event.Refund != nil:
		fields["external_refund_id"] = event.Refund.ExternalRefundID
		fields["external_payment_id"] = event.Refund.ExternalPaymentID
	}
	return fields
}
