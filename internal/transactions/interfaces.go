package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

// Repository persists payment intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByGatewayOrderID(ctx context.Context, gateway enums.PaymentGateway, gatewayOrderID string) (*models.Transaction, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, updates map[string]any) (bool, error)
	SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) error
	RecordAttemptFailure(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	RecordSettlementFailure(ctx context.Context, id uuid.UUID, reason string) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error)
	ListUnsettledSuccess(ctx context.Context, maxAttempts, limit int) ([]models.Transaction, error)
}
