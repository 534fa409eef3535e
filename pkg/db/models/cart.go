package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the one-per-user basket supplied by the storefront.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    string     `gorm:"column:user_id;not null;uniqueIndex"`
	Items     []CartItem `gorm:"foreignKey:CartID;references:ID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cart) TableName() string { return "carts" }

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem carries an optional per-unit discount proposed by the negotiation
// feature. The proposal is advisory and is re-validated before use.
type CartItem struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID                uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID             uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	VariantName           *string   `gorm:"column:variant_name"`
	Quantity              int       `gorm:"column:quantity;not null"`
	ProposedDiscountMinor int64     `gorm:"column:proposed_discount_minor;not null;default:0"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
