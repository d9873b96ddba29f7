package enums

import "fmt"

// SubscriptionStatus mirrors the recurring mandate lifecycle at the gateway.
type SubscriptionStatus string

const (
	SubscriptionStatusCreated       SubscriptionStatus = "created"
	SubscriptionStatusAuthenticated SubscriptionStatus = "authenticated"
	SubscriptionStatusActive        SubscriptionStatus = "active"
	SubscriptionStatusPaused        SubscriptionStatus = "paused"
	SubscriptionStatusHalted        SubscriptionStatus = "halted"
	SubscriptionStatusCancelled     SubscriptionStatus = "cancelled"
	SubscriptionStatusCompleted     SubscriptionStatus = "completed"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusCreated,
	SubscriptionStatusAuthenticated,
	SubscriptionStatusActive,
	SubscriptionStatusPaused,
	SubscriptionStatusHalted,
	SubscriptionStatusCancelled,
	SubscriptionStatusCompleted,
}

var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusCreated: {
		SubscriptionStatusAuthenticated, SubscriptionStatusActive, SubscriptionStatusCancelled,
	},
	SubscriptionStatusAuthenticated: {
		SubscriptionStatusActive, SubscriptionStatusCancelled,
	},
	SubscriptionStatusActive: {
		SubscriptionStatusPaused, SubscriptionStatusHalted, SubscriptionStatusCancelled, SubscriptionStatusCompleted,
	},
	SubscriptionStatusPaused: {
		SubscriptionStatusActive, SubscriptionStatusCancelled,
	},
	SubscriptionStatusHalted: {
		SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusCompleted,
	},
}

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the mandate can no longer change.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusCompleted
}

// CanTransitionTo reports whether next is a legal move from s.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	for _, candidate := range subscriptionTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
