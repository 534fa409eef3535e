package enums

import (
	"fmt"
	"strings"
)

// PaymentGateway identifies the provider a transaction is routed through.
type PaymentGateway string

const (
	PaymentGatewayRazorpay PaymentGateway = "razorpay"
	PaymentGatewayPayU     PaymentGateway = "payu"
	PaymentGatewayCOD      PaymentGateway = "cod"
)

var validPaymentGateways = []PaymentGateway{
	PaymentGatewayRazorpay,
	PaymentGatewayPayU,
	PaymentGatewayCOD,
}

// String implements fmt.Stringer.
func (g PaymentGateway) String() string {
	return string(g)
}

// IsValid reports whether the value is a known PaymentGateway.
func (g PaymentGateway) IsValid() bool {
	for _, candidate := range validPaymentGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// IsOnline is false only for cash on delivery.
func (g PaymentGateway) IsOnline() bool {
	return g == PaymentGatewayRazorpay || g == PaymentGatewayPayU
}

// PaymentMethod maps the gateway onto the method recorded on orders.
func (g PaymentGateway) PaymentMethod() PaymentMethod {
	switch g {
	case PaymentGatewayRazorpay:
		return PaymentMethodOnlineGatewayA
	case PaymentGatewayPayU:
		return PaymentMethodOnlineGatewayB
	default:
		return PaymentMethodCOD
	}
}

// ParsePaymentGateway converts raw input into a PaymentGateway.
func ParsePaymentGateway(value string) (PaymentGateway, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentGateways {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment gateway %q", value)
}
