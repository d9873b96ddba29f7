package enums

import "strings"

// PaymentMethod is the instrument a tenant paid with.
type PaymentMethod string

const (
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"
	PaymentMethodEMI        PaymentMethod = "emi"
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodOther      PaymentMethod = "other"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodUPI,
	PaymentMethodCard,
	PaymentMethodNetbanking,
	PaymentMethodWallet,
	PaymentMethodEMI,
	PaymentMethodCash,
	PaymentMethodOther,
}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// NormalizePaymentMethod maps gateway-reported method names onto the closed set.
// Unknown values become PaymentMethodOther rather than failing reconciliation.
func NormalizePaymentMethod(value string) PaymentMethod {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "card", "credit_card", "debit_card":
		return PaymentMethodCard
	case "bank_account", "netbanking":
		return PaymentMethodNetbanking
	case "wallet", "cash_app", "square_account":
		return PaymentMethodWallet
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate
		}
	}
	return PaymentMethodOther
}
