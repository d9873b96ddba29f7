// Package money converts between internal major-unit decimals and the integer
// minor units payment gateways exchange.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
}

// Exponent returns the number of minor-unit digits for an ISO currency.
func Exponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		return 0
	}
	return 2
}

// ToMinorUnits converts a major-unit amount to integer minor units. Amounts
// carrying more precision than the currency supports are rejected.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp := Exponent(currency)
	scaled := amount.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-minor-unit precision for %s", amount.String(), currency)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows minor units", amount.String())
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts integer minor units back to a major-unit decimal.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Normalize rounds an amount to the currency's minor unit for storage.
func Normalize(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(Exponent(currency))
}

// Format renders an amount with the currency's fixed number of decimals.
func Format(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(Exponent(currency))
}
