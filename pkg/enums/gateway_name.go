package enums

import (
	"fmt"
	"strings"
)

// GatewayName identifies the payment gateway an intent was opened with.
type GatewayName string

const (
	GatewayRazorpay GatewayName = "razorpay"
	GatewaySquare   GatewayName = "square"
	// GatewayManual marks intents settled without an external gateway.
	GatewayManual GatewayName = "manual"
)

var validGatewayNames = []GatewayName{GatewayRazorpay, GatewaySquare, GatewayManual}

func (g GatewayName) String() string {
	return string(g)
}

func (g GatewayName) IsValid() bool {
	for _, candidate := range validGatewayNames {
		if candidate == g {
			return true
		}
	}
	return false
}

func ParseGatewayName(value string) (GatewayName, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validGatewayNames {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway %q", value)
}
