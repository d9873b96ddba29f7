package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMinorUnitsRoundTrip(t *testing.T) {
	for _, raw := range []string{"0.01", "1", "500", "500.00", "3000.5", "99999.99", "123456789.12"} {
		amount := decimal.RequireFromString(raw)
		minor, err := ToMinorUnits(amount, "INR")
		require.NoError(t, err)
		back := FromMinorUnits(minor, "INR")
		require.Truef(t, back.Equal(amount), "round trip drifted for %s: got %s", raw, back)
	}
}

func TestMinorUnitsRoundTripFromInteger(t *testing.T) {
	for minor := int64(0); minor < 2000; minor += 7 {
		amount := FromMinorUnits(minor, "INR")
		got, err := ToMinorUnits(amount, "INR")
		require.NoError(t, err)
		require.Equal(t, minor, got)
	}
}

func TestToMinorUnitsKnownValues(t *testing.T) {
	minor, err := ToMinorUnits(decimal.RequireFromString("500"), "INR")
	require.NoError(t, err)
	require.EqualValues(t, 50000, minor)

	minor, err = ToMinorUnits(decimal.RequireFromString("500"), "JPY")
	require.NoError(t, err)
	require.EqualValues(t, 500, minor)
}

func TestToMinorUnitsRejectsSubMinorPrecision(t *testing.T) {
	_, err := ToMinorUnits(decimal.RequireFromString("10.005"), "INR")
	require.Error(t, err)
	_, err = ToMinorUnits(decimal.RequireFromString("10.5"), "JPY")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "3000.00", Format(decimal.NewFromInt(3000), "INR"))
	require.Equal(t, "12.35", Format(Normalize(decimal.RequireFromString("12.345"), "INR"), "inr"))
}
