package orders

import (
	"github.com/google/uuid"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

// OrderList is one page of a user's orders, newest first.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// FulfillmentUpdate is the input to UpdateFulfillment.
type FulfillmentUpdate struct {
	OrderID        uuid.UUID
	Status         enums.FulfillmentStatus
	TrackingNumber *string
}
