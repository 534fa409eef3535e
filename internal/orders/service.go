package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox/payloads"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryRestorer returns settled stock when an order is cancelled.
type InventoryRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variant *string, qty int) (int, error)
}

// TransactionFinalizer confirms the linked transaction when COD cash is collected.
type TransactionFinalizer interface {
	MarkTerminalTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, outcome transactions.Outcome) (*transactions.TerminalResult, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repository   Repository
	TxRunner     txRunner
	Outbox       outboxPublisher
	Inventory    InventoryRestorer
	Transactions TransactionFinalizer
	Logger       *logger.Logger
}

// Service exposes order reads and the fulfillment lifecycle.
type Service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	inventory    InventoryRestorer
	transactions TransactionFinalizer
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory restorer required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction finalizer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:         params.Repository,
		tx:           params.TxRunner,
		outbox:       params.Outbox,
		inventory:    params.Inventory,
		transactions: params.Transactions,
		logg:         params.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, userID string, params pagination.Params) (*OrderList, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "userId is required")
	}
	return s.repo.ListByUser(ctx, userID, params)
}

// UpdateFulfillment advances the order along processing -> shipped -> delivered,
// or cancels it from processing or shipped. Repeating the current status is a no-op.
func (s *Service) UpdateFulfillment(ctx context.Context, input FulfillmentUpdate) (*models.Order, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment status").
			WithDetails(map[string]any{"status": input.Status})
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.FulfillmentStatus == input.Status {
			updated = order
			return nil
		}
		if !order.FulfillmentStatus.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment transition not allowed").WithDetails(map[string]any{
				"from": order.FulfillmentStatus,
				"to":   input.Status,
			})
		}

		now := s.now()
		updates := map[string]any{"fulfillment_status": input.Status}
		events := []enums.OutboxEventType{}
		switch input.Status {
		case enums.FulfillmentStatusShipped:
			events = append(events, enums.EventOrderShipped)
		case enums.FulfillmentStatusDelivered:
			updates["delivered_at"] = now
			events = append(events, enums.EventOrderDelivered)
			if order.PaymentMethod == enums.PaymentMethodCOD && order.PaymentStatus == enums.PaymentStatusPending {
				if err := s.collectCash(ctx, tx, order); err != nil {
					return err
				}
				updates["payment_status"] = enums.PaymentStatusPaid
				updates["paid_at"] = now
				events = append(events, enums.EventOrderPaid)
			}
		case enums.FulfillmentStatusCancelled:
			updates["cancelled_at"] = now
			if err := s.restoreStock(ctx, tx, order); err != nil {
				return err
			}
			if order.PaymentStatus == enums.PaymentStatusPaid && order.PaymentMethod != enums.PaymentMethodCOD {
				updates["payment_status"] = enums.PaymentStatusRefunded
			}
			events = append(events, enums.EventOrderCancelled)
		}

		won, err := repo.CompareAndSetFulfillment(ctx, order.ID, order.FulfillmentStatus, updates)
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}

		for _, eventType := range events {
			if err := s.outbox.Emit(ctx, tx, statusEvent(eventType, updated, input.TrackingNumber, now)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, updated.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"fulfillment_status": updated.FulfillmentStatus,
		"payment_status":     updated.PaymentStatus,
	})
	s.logg.Info(logCtx, "order fulfillment updated")
	return updated, nil
}

func (s *Service) collectCash(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.TransactionID == nil {
		return nil
	}
	_, err := s.transactions.MarkTerminalTx(ctx, tx, *order.TransactionID, transactions.Outcome{
		Status: enums.TransactionStatusSuccess,
		Source: "cod_delivery",
	})
	return err
}

func (s *Service) restoreStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if _, err := s.inventory.Restore(ctx, tx, item.ProductID, item.VariantName, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func statusEvent(eventType enums.OutboxEventType, order *models.Order, tracking *string, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "fulfillment"},
		Data: payloads.OrderStatusEvent{
			OrderID:           order.ID,
			OrderCode:         order.OrderCode,
			UserID:            order.UserID,
			FulfillmentStatus: order.FulfillmentStatus,
			PaymentStatus:     order.PaymentStatus,
			TrackingNumber:    tracking,
			ChangedAt:         at,
		},
		OccurredAt: at,
	}
}
