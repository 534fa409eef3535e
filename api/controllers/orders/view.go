package orders

import (
	"time"

	"github.com/google/uuid"

	internalorders "github.com/BhumikP/ecomm-firebase-sub000/internal/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// OrderResponse is the public shape of an order.
type OrderResponse struct {
	ID                uuid.UUID               `json:"id"`
	OrderCode         string                  `json:"order_code"`
	UserID            string                  `json:"user_id"`
	TransactionID     *uuid.UUID              `json:"transaction_id,omitempty"`
	Items             []types.LineItem        `json:"items"`
	SubtotalMinor     int64                   `json:"subtotal_minor"`
	DiscountMinor     int64                   `json:"discount_minor"`
	TaxMinor          int64                   `json:"tax_minor"`
	ShippingMinor     int64                   `json:"shipping_minor"`
	TotalMinor        int64                   `json:"total_minor"`
	Currency          enums.Currency          `json:"currency"`
	PaymentMethod     enums.PaymentMethod     `json:"payment_method"`
	PaymentStatus     enums.PaymentStatus     `json:"payment_status"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	ShippingAddress   types.Address           `json:"shipping_address"`
	PaidAt            *time.Time              `json:"paid_at,omitempty"`
	DeliveredAt       *time.Time              `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

type orderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// NewOrderResponse maps a stored order; nil stays nil.
func NewOrderResponse(order *models.Order) *OrderResponse {
	if order == nil {
		return nil
	}
	items := []types.LineItem(order.Items)
	if items == nil {
		items = []types.LineItem{}
	}
	return &OrderResponse{
		ID:                order.ID,
		OrderCode:         order.OrderCode,
		UserID:            order.UserID,
		TransactionID:     order.TransactionID,
		Items:             items,
		SubtotalMinor:     order.SubtotalMinor,
		DiscountMinor:     order.DiscountMinor,
		TaxMinor:          order.TaxMinor,
		ShippingMinor:     order.ShippingMinor,
		TotalMinor:        order.TotalMinor,
		Currency:          order.Currency,
		PaymentMethod:     order.PaymentMethod,
		PaymentStatus:     order.PaymentStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		ShippingAddress:   order.ShippingAddress,
		PaidAt:            order.PaidAt,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,
		CreatedAt:         order.CreatedAt,
	}
}

func newOrderListResponse(list *internalorders.OrderList) orderListResponse {
	resp := orderListResponse{Orders: []OrderResponse{}}
	if list == nil {
		return resp
	}
	resp.NextCursor = list.NextCursor
	for i := range list.Orders {
		resp.Orders = append(resp.Orders, *NewOrderResponse(&list.Orders[i]))
	}
	return resp
}
