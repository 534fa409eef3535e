package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
)

const (
	maxStoredErrorLen = 512
	defaultListLimit  = 100
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	return &txn, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gateway enums.PaymentGateway, gatewayOrderID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND gateway_order_id = ?", gateway, gatewayOrderID).
		Order("created_at DESC").
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found for gateway order")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction by gateway order")
	}
	return &txn, nil
}

// CompareAndSetStatus moves the row from `from` to `to` only if it still holds `from`.
// It reports whether this caller won the transition.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, updates map[string]any) (bool, error) {
	values := map[string]any{}
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	values["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update transaction status")
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"gateway_order_id": gatewayOrderID,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "store gateway order id")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is no longer pending")
	}
	return nil
}

// RecordAttemptFailure stores the reason a payment attempt failed while the
// transaction stays Pending. It reports whether a pending row was updated.
func (r *repository) RecordAttemptFailure(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	if len(reason) > maxStoredErrorLen {
		reason = reason[:maxStoredErrorLen]
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "record payment attempt failure")
	}
	return res.RowsAffected == 1, nil
}

// RecordSettlementFailure counts a failed settlement attempt on a successful transaction.
func (r *repository) RecordSettlementFailure(ctx context.Context, id uuid.UUID, reason string) error {
	if len(reason) > maxStoredErrorLen {
		reason = reason[:maxStoredErrorLen]
	}
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"settlement_attempts":   gorm.Expr("settlement_attempts + 1"),
			"last_settlement_error": reason,
			"updated_at":            time.Now().UTC(),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record settlement failure")
	}
	return nil
}

func (r *repository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.TransactionStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale pending transactions")
	}
	return rows, nil
}

// ListUnsettledSuccess returns online transactions that captured money but have no order yet.
func (r *repository) ListUnsettledSuccess(ctx context.Context, maxAttempts, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []models.Transaction
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.TransactionStatusSuccess).
		Where("gateway IN ?", []enums.PaymentGateway{enums.PaymentGatewayRazorpay, enums.PaymentGatewayPayU}).
		Where("NOT EXISTS (SELECT 1 FROM orders WHERE orders.transaction_id = transactions.id)")
	if maxAttempts > 0 {
		q = q.Where("settlement_attempts < ?", maxAttempts)
	}
	err := q.Order("created_at ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unsettled transactions")
	}
	return rows, nil
}
