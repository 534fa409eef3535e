// Package gateways turns provider-specific confirmations into one canonical outcome.
package gateways

import (
	"errors"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

// ErrUnsupportedEvent marks a well-formed delivery that carries no payment outcome.
var ErrUnsupportedEvent = errors.New("gateway event carries no payment outcome")

// Outcome is the canonical result every adapter produces.
type Outcome struct {
	Gateway          enums.PaymentGateway
	TransactionRef   string
	GatewayOrderID   string
	GatewayPaymentID string
	Succeeded        bool
	Reason           string
}

// Adapter verifies and decodes one gateway's confirmation payload.
type Adapter interface {
	Gateway() enums.PaymentGateway
	Verify(raw []byte, signature string) bool
	ExtractOutcome(raw []byte) (Outcome, error)
}

// Status maps the outcome onto the terminal transaction status it implies.
func (o Outcome) Status() enums.TransactionStatus {
	if o.Succeeded {
		return enums.TransactionStatusSuccess
	}
	return enums.TransactionStatusFailed
}
