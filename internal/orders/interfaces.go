package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/pagination"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, params pagination.Params) (*OrderList, error)
	CompareAndSetFulfillment(ctx context.Context, id uuid.UUID, from enums.FulfillmentStatus, updates map[string]any) (bool, error)
}
