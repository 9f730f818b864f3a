package enums

import "fmt"

// PaymentMethod labels one line of a shift deposit.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentQRIS     PaymentMethod = "QRIS"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCard     PaymentMethod = "CARD"
	PaymentCoupon   PaymentMethod = "COUPON"
)

var validPaymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentQRIS,
	PaymentTransfer,
	PaymentCard,
	PaymentCoupon,
}

// IsValid reports whether the value matches a known payment method.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
