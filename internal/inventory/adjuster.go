package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
)

// Adjuster applies stock deltas inside the caller's database transaction.
// It is the only writer of product and variant stock.
type Adjuster struct{}

// NewAdjuster returns the default adjuster.
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// ShortageDetails is attached to INSUFFICIENT_STOCK errors.
type ShortageDetails struct {
	ProductID uuid.UUID `json:"product_id"`
	Variant   string    `json:"variant,omitempty"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Decrement removes qty units and returns the resulting stock of the adjusted
// row (the variant when one is named). Stock never goes negative: a short row
// yields an INSUFFICIENT_STOCK error and nothing is written.
func (a *Adjuster) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variant *string, qty int) (int, error) {
	return a.adjust(ctx, tx, productID, variant, -qty, qty)
}

// Restore puts qty units back. It is used by cancellation.
func (a *Adjuster) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variant *string, qty int) (int, error) {
	return a.adjust(ctx, tx, productID, variant, qty, qty)
}

func (a *Adjuster) adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variant *string, delta, qty int) (int, error) {
	if qty <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]any{"quantity": qty})
	}
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory adjustment")
	}
	db := tx.WithContext(ctx)

	var product models.Product
	if err := db.Preload("Variants").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"product_id": productID})
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}

	name := VariantName(variant)
	if !product.HasVariants() {
		if name != "" {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "product has no variants").WithDetails(map[string]any{
				"product_id": productID,
				"variant":    name,
			})
		}
		return a.adjustProduct(db, product, delta, qty)
	}

	if name == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "variant required for product").WithDetails(map[string]any{"product_id": productID})
	}
	row, ok := product.Variant(name)
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").WithDetails(map[string]any{
			"product_id": productID,
			"variant":    name,
		})
	}
	return a.adjustVariant(db, product, *row, delta, qty)
}

func (a *Adjuster) adjustProduct(db *gorm.DB, product models.Product, delta, qty int) (int, error) {
	res := db.Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock + ? >= 0
	`, delta, product.ID, delta)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust product stock")
	}

	current, err := readStock(db, "products", "id = ?", product.ID)
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return 0, insufficient(product.ID, "", qty, current)
	}
	return current, nil
}

func (a *Adjuster) adjustVariant(db *gorm.DB, product models.Product, variant models.ProductVariant, delta, qty int) (int, error) {
	res := db.Exec(`
		UPDATE product_variants
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock + ? >= 0
	`, delta, variant.ID, delta)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust variant stock")
	}

	current, err := readStock(db, "product_variants", "id = ?", variant.ID)
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return 0, insufficient(product.ID, variant.Name, qty, current)
	}

	if err := db.Exec(`
		UPDATE products
		SET stock = (SELECT COALESCE(SUM(v.stock), 0) FROM product_variants v WHERE v.product_id = ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, product.ID, product.ID).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute product stock")
	}
	return current, nil
}

// Available reports the sellable stock for a loaded product and optional variant.
func Available(product models.Product, variant *string) (int, error) {
	name := VariantName(variant)
	if !product.HasVariants() {
		if name != "" {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "product has no variants").WithDetails(map[string]any{
				"product_id": product.ID,
				"variant":    name,
			})
		}
		return product.Stock, nil
	}
	if name == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "variant required for product").WithDetails(map[string]any{"product_id": product.ID})
	}
	row, ok := product.Variant(name)
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").WithDetails(map[string]any{
			"product_id": product.ID,
			"variant":    name,
		})
	}
	return row.Stock, nil
}

// VariantName normalizes an optional variant reference.
func VariantName(variant *string) string {
	if variant == nil {
		return ""
	}
	return strings.TrimSpace(*variant)
}

// IsInsufficientStock reports whether err is a stock shortage.
func IsInsufficientStock(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock)
}

func insufficient(productID uuid.UUID, variant string, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for product "+productID.String()).
		WithDetails(ShortageDetails{
			ProductID: productID,
			Variant:   variant,
			Requested: requested,
			Available: available,
		})
}

func readStock(db *gorm.DB, table, where string, id uuid.UUID) (int, error) {
	var stock int
	if err := db.Table(table).Select("stock").Where(where, id).Scan(&stock).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
	}
	return stock, nil
}
