package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is owned by the catalog. Settlement only mutates its stock.
// When Variants exist, Stock is the sum of the variant stocks.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name       string           `gorm:"column:name;not null"`
	PriceMinor int64            `gorm:"column:price_minor;not null"`
	Stock      int              `gorm:"column:stock;not null;default:0;check:chk_products_stock_non_negative,stock >= 0"`
	Variants   []ProductVariant `gorm:"foreignKey:ProductID;references:ID"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// HasVariants reports whether stock is tracked per variant.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// Variant finds a variant by name.
func (p Product) Variant(name string) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Name == name {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// ProductVariant is a named color (or other attribute) with its own stock.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_variants_product_name"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:ux_product_variants_product_name"`
	Stock     int       `gorm:"column:stock;not null;default:0;check:chk_product_variants_stock_non_negative,stock >= 0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductVariant) TableName() string { return "product_variants" }

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
