package checkout

import (
	"github.com/google/uuid"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/payu"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// InitiateInput starts an online payment for the user's cart.
type InitiateInput struct {
	UserID          string
	Gateway         enums.PaymentGateway
	ShippingAddress types.Address
	// Discounts overrides the cart's proposed per-unit discounts, keyed by product.
	Discounts map[uuid.UUID]int64
	Customer  payu.Customer
}

// InitiateResult carries what the client needs to open the gateway.
type InitiateResult struct {
	Transaction    *models.Transaction  `json:"transaction"`
	Totals         pricing.Totals       `json:"totals"`
	Gateway        enums.PaymentGateway `json:"gateway"`
	GatewayPayload any                  `json:"gateway_payload"`
}

// ConfirmationInput is the client-side Razorpay handler result.
type ConfirmationInput struct {
	TransactionID uuid.UUID
	OrderID       string
	PaymentID     string
	Signature     string
}

// CODInput places a cash-on-delivery order for the user's cart.
type CODInput struct {
	UserID          string
	ShippingAddress types.Address
	Discounts       map[uuid.UUID]int64
}

// Result reports how a confirmation was applied.
type Result struct {
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Order       *models.Order       `json:"order,omitempty"`
	// Replayed is set when the order already existed.
	Replayed bool `json:"replayed"`
	// Duplicate is set when the delivery was seen before and skipped.
	Duplicate bool `json:"duplicate"`
	// Ignored is set for deliveries that carry no applicable outcome.
	Ignored bool `json:"ignored"`
	// Verified is false when a callback failed its hash check.
	Verified bool `json:"verified"`
}
