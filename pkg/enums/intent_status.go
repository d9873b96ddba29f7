package enums

import "fmt"

// IntentStatus tracks a payment intent through its gateway lifecycle.
type IntentStatus string

const (
	IntentStatusCreated           IntentStatus = "CREATED"
	IntentStatusPending           IntentStatus = "PENDING"
	IntentStatusAuthorized        IntentStatus = "AUTHORIZED"
	IntentStatusCaptured          IntentStatus = "CAPTURED"
	IntentStatusFailed            IntentStatus = "FAILED"
	IntentStatusRefunded          IntentStatus = "REFUNDED"
	IntentStatusPartiallyRefunded IntentStatus = "PARTIALLY_REFUNDED"
	IntentStatusCancelled         IntentStatus = "CANCELLED"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusCreated,
	IntentStatusPending,
	IntentStatusAuthorized,
	IntentStatusCaptured,
	IntentStatusFailed,
	IntentStatusRefunded,
	IntentStatusPartiallyRefunded,
	IntentStatusCancelled,
}

// intentTransitions lists the only direct edges of the intent state machine.
var intentTransitions = map[IntentStatus][]IntentStatus{
	IntentStatusCreated:           {IntentStatusPending, IntentStatusCancelled},
	IntentStatusPending:           {IntentStatusAuthorized, IntentStatusFailed, IntentStatusCancelled},
	IntentStatusAuthorized:        {IntentStatusCaptured, IntentStatusCancelled},
	IntentStatusCaptured:          {IntentStatusRefunded, IntentStatusPartiallyRefunded},
	IntentStatusPartiallyRefunded: {IntentStatusPartiallyRefunded, IntentStatusRefunded},
}

// String implements fmt.Stringer.
func (s IntentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IntentStatus.
func (s IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further gateway event may move the intent.
// CAPTURED is terminal for payment events; refunds still apply to it.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentStatusFailed, IntentStatusCaptured, IntentStatusRefunded, IntentStatusCancelled:
		return true
	default:
		return false
	}
}

// IsCaptured reports whether money has been captured for the intent,
// including intents that were later refunded.
func (s IntentStatus) IsCaptured() bool {
	switch s {
	case IntentStatusCaptured, IntentStatusPartiallyRefunded, IntentStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is a direct edge from s.
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	for _, candidate := range intentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// PathTo returns the chain of statuses walked from s to target, excluding s.
// It returns false when target is not reachable through the transition table.
func (s IntentStatus) PathTo(target IntentStatus) ([]IntentStatus, bool) {
	if s == target {
		return nil, false
	}
	type step struct {
		status IntentStatus
		path   []IntentStatus
	}
	visited := map[IntentStatus]bool{s: true}
	queue := []step{{status: s}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range intentTransitions[current.status] {
			if visited[next] {
				continue
			}
			path := append(append([]IntentStatus{}, current.path...), next)
			if next == target {
				return path, true
			}
			visited[next] = true
			queue = append(queue, step{status: next, path: path})
		}
	}
	return nil, false
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
