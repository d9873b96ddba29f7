package enums

import "fmt"

// GatewayPaymentStatus is the payment outcome reported by a gateway event.
type GatewayPaymentStatus string

const (
	GatewayPaymentAuthorized GatewayPaymentStatus = "authorized"
	GatewayPaymentCaptured   GatewayPaymentStatus = "captured"
	GatewayPaymentFailed     GatewayPaymentStatus = "failed"
)

func (s GatewayPaymentStatus) String() string {
	return string(s)
}

// IntentStatus returns the intent state this gateway outcome drives toward.
func (s GatewayPaymentStatus) IntentStatus() (IntentStatus, error) {
	switch s {
	case GatewayPaymentAuthorized:
		return IntentStatusAuthorized, nil
	case GatewayPaymentCaptured:
		return IntentStatusCaptured, nil
	case GatewayPaymentFailed:
		return IntentStatusFailed, nil
	default:
		return "", fmt.Errorf("invalid gateway payment status %q", s)
	}
}
