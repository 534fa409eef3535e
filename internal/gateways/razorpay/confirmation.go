// Package razorpay adapts Razorpay checkout confirmations, webhooks and order registration.
package razorpay

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

// Confirmation is what the checkout widget hands back to the client after payment.
type Confirmation struct {
	PaymentID     string `json:"razorpayPaymentId" validate:"required"`
	OrderID       string `json:"razorpayOrderId" validate:"required"`
	Signature     string `json:"razorpaySignature" validate:"required"`
	TransactionID string `json:"transactionId" validate:"required,uuid"`
}

// SignedPayload is the string Razorpay signs for a checkout confirmation.
func (c Confirmation) SignedPayload() []byte {
	return []byte(c.OrderID + "|" + c.PaymentID)
}

// ConfirmationAdapter verifies client-relayed checkout confirmations with the key secret.
type ConfirmationAdapter struct {
	keySecret string
}

func NewConfirmationAdapter(keySecret string) (*ConfirmationAdapter, error) {
	if keySecret == "" {
		return nil, errors.New("razorpay key secret is required")
	}
	return &ConfirmationAdapter{keySecret: keySecret}, nil
}

func (a *ConfirmationAdapter) Gateway() enums.PaymentGateway {
	return enums.PaymentGatewayRazorpay
}

// Verify checks signature against HMAC(order_id|payment_id). An empty signature
// falls back to the one carried in the payload.
func (a *ConfirmationAdapter) Verify(raw []byte, signature string) bool {
	confirmation, err := decodeConfirmation(raw)
	if err != nil {
		return false
	}
	if signature == "" {
		signature = confirmation.Signature
	}
	return validSignature(a.keySecret, confirmation.SignedPayload(), signature)
}

func (a *ConfirmationAdapter) ExtractOutcome(raw []byte) (gateways.Outcome, error) {
	confirmation, err := decodeConfirmation(raw)
	if err != nil {
		return gateways.Outcome{}, err
	}
	return gateways.Outcome{
		Gateway:          enums.PaymentGatewayRazorpay,
		TransactionRef:   confirmation.TransactionID,
		GatewayOrderID:   confirmation.OrderID,
		GatewayPaymentID: confirmation.PaymentID,
		Succeeded:        true,
	}, nil
}

func decodeConfirmation(raw []byte) (Confirmation, error) {
	var c Confirmation
	if err := json.Unmarshal(raw, &c); err != nil {
		return Confirmation{}, err
	}
	c.PaymentID = strings.TrimSpace(c.PaymentID)
	c.OrderID = strings.TrimSpace(c.OrderID)
	c.TransactionID = strings.TrimSpace(c.TransactionID)
	if c.PaymentID == "" || c.OrderID == "" {
		return Confirmation{}, errors.New("razorpay confirmation missing payment or order id")
	}
	return c, nil
}
