// Package settlement turns a successful payment into exactly one order,
// decrementing stock and clearing the cart in the same database transaction.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/cart"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/inventory"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/metrics"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox/payloads"
)

const maxAttempts = 2

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockDecrementer applies binding stock decrements inside the settlement transaction.
type StockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variant *string, qty int) (int, error)
}

// Settler is implemented by Service.
type Settler interface {
	Settle(ctx context.Context, transactionID uuid.UUID) (*Result, error)
}

// Result is the order a settlement produced. Replayed is true when the order
// already existed and nothing was written.
type Result struct {
	Order    *models.Order
	Replayed bool
}

// ServiceParams wires the settlement orchestrator.
type ServiceParams struct {
	Transactions transactions.Repository
	Orders       orders.Repository
	Carts        cart.CartRepository
	Inventory    StockDecrementer
	Pricing      pricing.Policy
	TxRunner     txRunner
	Outbox       outboxPublisher
	Metrics      *metrics.SettlementMetrics
	Logger       *logger.Logger
}

type Service struct {
	txns      transactions.Repository
	orders    orders.Repository
	carts     cart.CartRepository
	inventory StockDecrementer
	policy    pricing.Policy
	tx        txRunner
	outbox    outboxPublisher
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory adjuster required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		txns:      params.Transactions,
		orders:    params.Orders,
		carts:     params.Carts,
		inventory: params.Inventory,
		policy:    params.Pricing,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Settle creates the order for a successful transaction. It is idempotent:
// a transaction that already has an order returns that order with Replayed set.
func (s *Service) Settle(ctx context.Context, transactionID uuid.UUID) (*Result, error) {
	started := time.Now()
	ctx = s.logg.WithTransactionID(ctx, transactionID.String())

	var (
		result *Result
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = s.attempt(ctx, transactionID)
		if err == nil || !retryable(err) {
			break
		}
		if attempt < maxAttempts {
			s.metrics.IncRetry()
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "settlement attempt failed, retrying")
		}
	}

	if err == nil {
		outcome := metrics.ResultSettled
		if result.Replayed {
			outcome = metrics.ResultReplayed
		}
		s.metrics.ObserveSettlement(outcome, time.Since(started))
		return result, nil
	}

	switch {
	case inventory.IsInsufficientStock(err):
		s.metrics.ObserveSettlement(metrics.ResultInsufficientStock, time.Since(started))
		s.recordFailure(ctx, transactionID, err)
		return nil, err
	case !retryable(err):
		s.metrics.ObserveSettlement(metrics.ResultRejected, time.Since(started))
		return nil, err
	default:
		s.metrics.ObserveSettlement(metrics.ResultFailed, time.Since(started))
		s.recordFailure(ctx, transactionID, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeSettlement, err, "settlement failed")
	}
}

func (s *Service) attempt(ctx context.Context, transactionID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txn, err := s.txns.WithTx(tx).FindByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != enums.TransactionStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not successful").
				WithDetails(map[string]any{"status": txn.Status})
		}

		orderRepo := s.orders.WithTx(tx)
		existing, err := orderRepo.FindByTransactionID(ctx, txn.ID)
		if err == nil {
			result = &Result{Order: existing, Replayed: true}
			return nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}

		order, err := s.settle(ctx, tx, txn)
		if err != nil {
			return err
		}
		result = &Result{Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		s.logg.Info(s.logg.WithOrderID(ctx, result.Order.ID.String()), "settlement replayed existing order")
	} else {
		logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"event":       "order.settled",
			"order_code":  result.Order.OrderCode,
			"total_minor": result.Order.TotalMinor,
		})
		s.logg.Info(logCtx, "order settled")
	}
	return result, nil
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, txn *models.Transaction) (*models.Order, error) {
	items, totals := s.policy.Price(txn.Items)
	if totals.GrandTotalMinor != txn.TotalMinor {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"captured_total_minor": txn.TotalMinor,
			"settled_total_minor":  totals.GrandTotalMinor,
		}), "settled total differs from captured total")
	}

	for _, item := range items {
		if _, err := s.inventory.Decrement(ctx, tx, item.ProductID, item.VariantName, item.Quantity); err != nil {
			return nil, err
		}
	}

	now := s.now()
	order := &models.Order{
		OrderCode:         NewOrderCode(now),
		UserID:            txn.UserID,
		TransactionID:     &txn.ID,
		Items:             items,
		SubtotalMinor:     totals.SubtotalMinor,
		DiscountMinor:     totals.DiscountMinor,
		TaxMinor:          totals.TaxMinor,
		ShippingMinor:     totals.ShippingMinor,
		TotalMinor:        totals.GrandTotalMinor,
		Currency:          txn.Currency,
		PaymentMethod:     txn.Gateway.PaymentMethod(),
		PaymentStatus:     enums.PaymentStatusPaid,
		FulfillmentStatus: enums.FulfillmentStatusProcessing,
		ShippingAddress:   txn.ShippingAddress,
		PaidAt:            &now,
	}
	if !txn.Gateway.IsOnline() {
		order.PaymentStatus = enums.PaymentStatusPending
		order.PaidAt = nil
	}
	if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
		return nil, err
	}

	if txn.CartID != nil {
		if err := s.carts.WithTx(tx).DeleteByID(ctx, *txn.CartID); err != nil {
			return nil, err
		}
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderSettled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: txn.UserID, Source: "settlement"},
		Data: payloads.OrderSettledEvent{
			OrderID:       order.ID,
			OrderCode:     order.OrderCode,
			TransactionID: txn.ID,
			UserID:        txn.UserID,
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: order.PaymentStatus,
			Currency:      order.Currency,
			TotalMinor:    order.TotalMinor,
			ItemCount:     items.TotalQuantity(),
			Gateway:       txn.Gateway,
			SettledAt:     now,
		},
		OccurredAt: now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order settled")
	}
	return order, nil
}

// recordFailure counts the attempt and queues an alert. The transaction stays
// Success so reconciliation can try again.
func (s *Service) recordFailure(ctx context.Context, transactionID uuid.UUID, cause error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.txns.WithTx(tx)
		if err := repo.RecordSettlementFailure(ctx, transactionID, cause.Error()); err != nil {
			return err
		}
		txn, err := repo.FindByID(ctx, transactionID)
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementFailed,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Actor:         &outbox.ActorRef{UserID: txn.UserID, Source: "settlement"},
			Data: payloads.SettlementFailedEvent{
				TransactionID: txn.ID,
				UserID:        txn.UserID,
				Gateway:       txn.Gateway,
				AmountMinor:   txn.TotalMinor,
				Reason:        cause.Error(),
				Attempts:      txn.SettlementAttempts,
				NeedsRefund:   txn.Gateway.IsOnline(),
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "failed to record settlement failure", err)
		return
	}
	s.logg.Error(s.logg.WithField(ctx, "event", "settlement.failed"), "settlement failed", cause)
}

// retryable is false for domain outcomes a second attempt cannot change.
func retryable(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	switch typed.Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal, pkgerrors.CodeConflict:
		return true
	default:
		return false
	}
}
