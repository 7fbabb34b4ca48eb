package enums

import "fmt"

// PaymentMethod is the closed set of supported checkout methods. The method
// decides when inventory is reserved: card orders reserve at payment, store
// orders reserve at order creation.
type PaymentMethod string

const (
	PaymentMethodCreditCard       PaymentMethod = "credit_card"
	PaymentMethodConvenienceStore PaymentMethod = "convenience_store"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCreditCard,
	PaymentMethodConvenienceStore,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, method := range validPaymentMethods {
		if method == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(value)
	if !method.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return method, nil
}
