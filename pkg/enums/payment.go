package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider identifies the card processor that captured a payment.
type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderSquare PaymentProvider = "square"
	ProviderMock   PaymentProvider = "mock"
)

// IsValid reports whether the value matches a known provider.
func (p PaymentProvider) IsValid() bool {
	switch p {
	case ProviderStripe, ProviderSquare, ProviderMock:
		return true
	}
	return false
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	p := PaymentProvider(strings.ToLower(strings.TrimSpace(value)))
	if p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
