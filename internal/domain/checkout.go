package domain

// CheckoutState tracks a basket through the payment hand-off.
type CheckoutState string

const (
	CheckoutNone            CheckoutState = "NO_CHECKOUT"
	CheckoutSetupRequested  CheckoutState = "PAY_SETUP_REQUESTED"
	CheckoutSetupConfirmed  CheckoutState = "PAY_SETUP_CONFIRMED"
	CheckoutChargeRequested CheckoutState = "CHARGE_REQUESTED"
	CheckoutChargeConfirmed CheckoutState = "CHARGE_CONFIRMED"
	CheckoutChargeFailed    CheckoutState = "CHARGE_FAILED"
	CheckoutOrderSubmitted  CheckoutState = "ORDER_SUBMITTED"
)

// LedgerEntry is the persisted checkout record for one basket.
type LedgerEntry struct {
	PK        string
	SK        string
	BasketID  string
	State     CheckoutState
	OrderID   string
	Total     float64
	UpdatedAt string
	TTL       int64
}
