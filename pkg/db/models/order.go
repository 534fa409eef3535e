package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// Order is the confirmed purchase. At most one exists per transaction.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderCode         string                  `gorm:"column:order_code;not null;uniqueIndex"`
	UserID            string                  `gorm:"column:user_id;not null;index"`
	TransactionID     *uuid.UUID              `gorm:"column:transaction_id;type:uuid;uniqueIndex:ux_orders_transaction_id"`
	Items             types.LineItems         `gorm:"column:items;type:jsonb;serializer:json;not null"`
	SubtotalMinor     int64                   `gorm:"column:subtotal_minor;not null"`
	DiscountMinor     int64                   `gorm:"column:discount_minor;not null;default:0"`
	TaxMinor          int64                   `gorm:"column:tax_minor;not null"`
	ShippingMinor     int64                   `gorm:"column:shipping_minor;not null"`
	TotalMinor        int64                   `gorm:"column:total_minor;not null"`
	Currency          enums.Currency          `gorm:"column:currency;not null"`
	PaymentMethod     enums.PaymentMethod     `gorm:"column:payment_method;not null"`
	PaymentStatus     enums.PaymentStatus     `gorm:"column:payment_status;not null"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;not null"`
	ShippingAddress   types.Address           `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	PaidAt            *time.Time              `gorm:"column:paid_at"`
	DeliveredAt       *time.Time              `gorm:"column:delivered_at"`
	CancelledAt       *time.Time              `gorm:"column:cancelled_at"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
