package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePaymentIntent  OutboxAggregateType = "payment_intent"
	AggregateSubscription   OutboxAggregateType = "subscription"
	AggregateRentPayment    OutboxAggregateType = "rent_payment"
	AggregateAdvancePayment OutboxAggregateType = "advance_payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePaymentIntent,
	AggregateSubscription,
	AggregateRentPayment,
	AggregateAdvancePayment,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the public domain event name published downstream.
type OutboxEventType string

const (
	EventPaymentSucceeded          OutboxEventType = "payment.succeeded"
	EventPaymentFailed             OutboxEventType = "payment.failed"
	EventPaymentRefunded           OutboxEventType = "payment.refunded"
	EventRentPaymentRecorded       OutboxEventType = "rent.payment.recorded"
	EventAdvancePaymentRecorded    OutboxEventType = "advance.payment.recorded"
	EventSubscriptionCharged       OutboxEventType = "subscription.charged"
	EventSubscriptionStatusChanged OutboxEventType = "subscription.status_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventRentPaymentRecorded,
	EventAdvancePaymentRecorded,
	EventSubscriptionCharged,
	EventSubscriptionStatusChanged,
}

func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
