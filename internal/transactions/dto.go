package transactions

import (
	"github.com/google/uuid"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// InitiateParams is the priced cart snapshot a transaction captures.
type InitiateParams struct {
	UserID          string
	CartID          *uuid.UUID
	Items           types.LineItems
	ShippingAddress types.Address
	Totals          pricing.Totals
	Currency        enums.Currency
	Gateway         enums.PaymentGateway
}

// Outcome is the terminal result reported by a gateway, the COD path or the expiry sweep.
type Outcome struct {
	Status           enums.TransactionStatus
	GatewayPaymentID string
	Signature        string
	Reason           string
	Source           string
}

// TerminalResult reports the transaction after MarkTerminal. Changed is false when
// the transaction was already terminal and nothing was written.
type TerminalResult struct {
	Transaction *models.Transaction
	Changed     bool
	// RefundQueued is set when a success arrived for a transaction that had
	// already failed or been cancelled and a refund alert was emitted.
	RefundQueued bool
}
