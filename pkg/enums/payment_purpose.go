package enums

import (
	"fmt"
	"strings"
)

// PaymentPurpose classifies what a charge pays for and selects its revenue account.
type PaymentPurpose string

const (
	PurposeRent        PaymentPurpose = "rent"
	PurposeDeposit     PaymentPurpose = "deposit"
	PurposeMess        PaymentPurpose = "mess"
	PurposeMaintenance PaymentPurpose = "maintenance"
	PurposeOther       PaymentPurpose = "other"
)

var validPaymentPurposes = []PaymentPurpose{
	PurposeRent,
	PurposeDeposit,
	PurposeMess,
	PurposeMaintenance,
	PurposeOther,
}

func (p PaymentPurpose) String() string {
	return string(p)
}

func (p PaymentPurpose) IsValid() bool {
	for _, candidate := range validPaymentPurposes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentPurpose converts raw input into a PaymentPurpose.
func ParsePaymentPurpose(value string) (PaymentPurpose, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentPurposes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment purpose %q", value)
}
