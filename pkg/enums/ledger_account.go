package enums

// LedgerAccount is a chart-of-accounts entry.
type LedgerAccount string

const (
	AccountCashAndBank      LedgerAccount = "cash_and_bank"
	AccountRentRevenue      LedgerAccount = "rent_revenue"
	AccountSecurityDeposits LedgerAccount = "security_deposits"
	AccountMessRevenue      LedgerAccount = "mess_revenue"
	AccountOtherRevenue     LedgerAccount = "other_revenue"
	AccountGatewayFees      LedgerAccount = "gateway_fees"
	AccountTaxPayable       LedgerAccount = "tax_payable"
)

var validLedgerAccounts = []LedgerAccount{
	AccountCashAndBank,
	AccountRentRevenue,
	AccountSecurityDeposits,
	AccountMessRevenue,
	AccountOtherRevenue,
	AccountGatewayFees,
	AccountTaxPayable,
}

func (a LedgerAccount) String() string {
	return string(a)
}

func (a LedgerAccount) IsValid() bool {
	for _, candidate := range validLedgerAccounts {
		if candidate == a {
			return true
		}
	}
	return false
}

// RevenueAccountFor maps a payment purpose to the account credited on capture.
func RevenueAccountFor(purpose PaymentPurpose) LedgerAccount {
	switch purpose {
	case PurposeRent:
		return AccountRentRevenue
	case PurposeDeposit:
		return AccountSecurityDeposits
	case PurposeMess:
		return AccountMessRevenue
	default:
		return AccountOtherRevenue
	}
}

// LedgerReferenceType names the record a ledger transaction points back to.
type LedgerReferenceType string

const (
	LedgerRefPayment            LedgerReferenceType = "payment"
	LedgerRefRefund             LedgerReferenceType = "refund"
	LedgerRefSubscriptionCharge LedgerReferenceType = "subscription_charge"
	LedgerRefManual             LedgerReferenceType = "manual"
)

func (t LedgerReferenceType) String() string {
	return string(t)
}
