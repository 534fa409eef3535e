package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
)

// CartRepository is the persistence surface settlement needs from the cart
// collaborator: read a snapshot, and delete after a successful settlement.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUserID(ctx context.Context, userID string) (*models.Cart, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
