package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
)

// CheckAvailability is the non-binding pre-check run at initiation. A shortage
// is reported as a validation error; the binding check happens at settlement.
func CheckAvailability(ctx context.Context, db *gorm.DB, productID uuid.UUID, variant *string, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]any{"quantity": qty})
	}
	var product models.Product
	if err := db.WithContext(ctx).Preload("Variants").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"product_id": productID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return CheckProduct(product, variant, qty)
}

// CheckProduct is CheckAvailability for an already loaded product.
func CheckProduct(product models.Product, variant *string, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]any{"quantity": qty})
	}
	available, err := Available(product, variant)
	if err != nil {
		return err
	}
	if available < qty {
		return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock for "+product.Name).WithDetails(ShortageDetails{
			ProductID: product.ID,
			Variant:   VariantName(variant),
			Requested: qty,
			Available: available,
		})
	}
	return nil
}
