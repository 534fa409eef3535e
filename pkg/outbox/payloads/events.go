package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

// OrderSettledEvent is emitted once a successful payment has become an order.
type OrderSettledEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderCode     string               `json:"order_code"`
	TransactionID uuid.UUID            `json:"transaction_id"`
	UserID        string               `json:"user_id"`
	PaymentMethod enums.PaymentMethod  `json:"payment_method"`
	PaymentStatus enums.PaymentStatus  `json:"payment_status"`
	Currency      enums.Currency       `json:"currency"`
	TotalMinor    int64                `json:"total_minor"`
	ItemCount     int                  `json:"item_count"`
	Gateway       enums.PaymentGateway `json:"gateway"`
	SettledAt     time.Time            `json:"settled_at"`
}

// SettlementFailedEvent reports a successful payment that could not become an
// order, either because settlement failed or because the capture arrived after
// the transaction had closed.
type SettlementFailedEvent struct {
	TransactionID    uuid.UUID            `json:"transaction_id"`
	UserID           string               `json:"user_id"`
	Gateway          enums.PaymentGateway `json:"gateway"`
	GatewayPaymentID string               `json:"gateway_payment_id,omitempty"`
	AmountMinor      int64                `json:"amount_minor"`
	Reason           string               `json:"reason"`
	Attempts         int                  `json:"attempts"`
	NeedsRefund      bool                 `json:"needs_refund"`
}

// TransactionClosedEvent is emitted when a pending transaction fails or is cancelled.
type TransactionClosedEvent struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	UserID        string                  `json:"user_id"`
	Gateway       enums.PaymentGateway    `json:"gateway"`
	Status        enums.TransactionStatus `json:"status"`
	Reason        string                  `json:"reason,omitempty"`
}

// OrderStatusEvent carries fulfillment and payment transitions of an order.
type OrderStatusEvent struct {
	OrderID           uuid.UUID               `json:"order_id"`
	OrderCode         string                  `json:"order_code"`
	UserID            string                  `json:"user_id"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	PaymentStatus     enums.PaymentStatus     `json:"payment_status"`
	TrackingNumber    *string                 `json:"tracking_number,omitempty"`
	ChangedAt         time.Time               `json:"changed_at"`
}
