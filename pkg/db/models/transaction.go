package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// Transaction is a payment intent. It is immutable once its status is terminal.
type Transaction struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID              string                  `gorm:"column:user_id;not null;index"`
	CartID              *uuid.UUID              `gorm:"column:cart_id;type:uuid"`
	Items               types.LineItems         `gorm:"column:items;type:jsonb;serializer:json;not null"`
	ShippingAddress     types.Address           `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	SubtotalMinor       int64                   `gorm:"column:subtotal_minor;not null"`
	DiscountMinor       int64                   `gorm:"column:discount_minor;not null;default:0"`
	TaxMinor            int64                   `gorm:"column:tax_minor;not null"`
	ShippingMinor       int64                   `gorm:"column:shipping_minor;not null"`
	TotalMinor          int64                   `gorm:"column:total_minor;not null"`
	Currency            enums.Currency          `gorm:"column:currency;not null"`
	Gateway             enums.PaymentGateway    `gorm:"column:gateway;not null"`
	Status              enums.TransactionStatus `gorm:"column:status;not null;index"`
	GatewayOrderID      *string                 `gorm:"column:gateway_order_id;index"`
	GatewayPaymentID    *string                 `gorm:"column:gateway_payment_id"`
	GatewaySignature    *string                 `gorm:"column:gateway_signature"`
	FailureReason       *string                 `gorm:"column:failure_reason"`
	SettlementAttempts  int                     `gorm:"column:settlement_attempts;not null;default:0"`
	LastSettlementError *string                 `gorm:"column:last_settlement_error"`
	TerminalAt          *time.Time              `gorm:"column:terminal_at"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
