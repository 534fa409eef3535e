package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the transaction manager.
type ServiceParams struct {
	Repository Repository
	TxRunner   txRunner
	Outbox     outboxPublisher
	Logger     *logger.Logger
}

// Service owns the payment-intent lifecycle. Pending is the only status that
// may change, and it changes exactly once.
type Service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("transactions repository required")
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
		repo:   params.Repository,
		tx:     params.TxRunner,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Initiate persists the transaction snapshot. Online gateways start Pending;
// COD is created already Success so it can be settled straight away.
func (s *Service) Initiate(ctx context.Context, params InitiateParams) (*models.Transaction, error) {
	return s.InitiateTx(ctx, nil, params)
}

// InitiateTx is Initiate bound to the caller's database transaction.
func (s *Service) InitiateTx(ctx context.Context, tx *gorm.DB, params InitiateParams) (*models.Transaction, error) {
	if err := validateInitiate(params); err != nil {
		return nil, err
	}
	status := enums.TransactionStatusPending
	var terminalAt *time.Time
	if params.Gateway == enums.PaymentGatewayCOD {
		status = enums.TransactionStatusSuccess
		now := s.now()
		terminalAt = &now
	}
	txn := &models.Transaction{
		UserID:          params.UserID,
		CartID:          params.CartID,
		Items:           params.Items,
		ShippingAddress: params.ShippingAddress.Normalized(),
		SubtotalMinor:   params.Totals.SubtotalMinor,
		DiscountMinor:   params.Totals.DiscountMinor,
		TaxMinor:        params.Totals.TaxMinor,
		ShippingMinor:   params.Totals.ShippingMinor,
		TotalMinor:      params.Totals.GrandTotalMinor,
		Currency:        params.Currency,
		Gateway:         params.Gateway,
		Status:          status,
		TerminalAt:      terminalAt,
	}
	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithTransactionID(ctx, txn.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event":       "transaction.initiated",
		"gateway":     txn.Gateway,
		"status":      txn.Status,
		"total_minor": txn.TotalMinor,
		"item_count":  len(txn.Items),
	})
	s.logg.Info(logCtx, "transaction initiated")
	return txn, nil
}

func validateInitiate(params InitiateParams) error {
	if params.UserID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(params.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, item := range params.Items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
	}
	if !params.Gateway.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment gateway")
	}
	if !params.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if err := params.ShippingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	return nil
}

// FindByID loads a transaction.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByGatewayOrderID resolves a webhook's gateway order reference.
func (s *Service) FindByGatewayOrderID(ctx context.Context, gateway enums.PaymentGateway, gatewayOrderID string) (*models.Transaction, error) {
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	return s.repo.FindByGatewayOrderID(ctx, gateway, gatewayOrderID)
}

// SetGatewayOrderID stores the gateway-side order reference on a pending transaction.
func (s *Service) SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) error {
	if gatewayOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	return s.repo.SetGatewayOrderID(ctx, id, gatewayOrderID)
}

// MarkTerminal applies a terminal outcome in its own database transaction.
func (s *Service) MarkTerminal(ctx context.Context, id uuid.UUID, outcome Outcome) (*TerminalResult, error) {
	var result *TerminalResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.MarkTerminalTx(ctx, tx, id, outcome)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkTerminalTx moves a pending transaction to a terminal status. When the
// transaction is already terminal, or a concurrent caller wins the transition,
// the current row is returned with Changed=false and no error.
func (s *Service) MarkTerminalTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, outcome Outcome) (*TerminalResult, error) {
	if !outcome.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outcome status must be terminal")
	}
	repo := s.repo.WithTx(tx)
	current, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithTransactionID(ctx, id.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"gateway":        current.Gateway,
		"target_status":  outcome.Status,
		"current_status": current.Status,
		"source":         outcome.Source,
	})
	if current.Status.IsTerminal() {
		s.logg.Info(logCtx, "transaction already terminal")
		return s.closedResult(logCtx, tx, current, outcome)
	}

	now := s.now()
	updates := map[string]any{"terminal_at": now}
	if outcome.GatewayPaymentID != "" {
		updates["gateway_payment_id"] = outcome.GatewayPaymentID
	}
	if outcome.Signature != "" {
		updates["gateway_signature"] = outcome.Signature
	}
	if outcome.Status != enums.TransactionStatusSuccess && outcome.Reason != "" {
		updates["failure_reason"] = outcome.Reason
	}

	won, err := repo.CompareAndSetStatus(ctx, id, enums.TransactionStatusPending, outcome.Status, updates)
	if err != nil {
		return nil, err
	}
	updated, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !won {
		s.logg.Info(logCtx, "transaction transition lost to a concurrent update")
		return s.closedResult(logCtx, tx, updated, outcome)
	}

	if eventType, ok := closedEventType(outcome.Status); ok {
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   updated.ID,
			Actor:         &outbox.ActorRef{UserID: updated.UserID, Source: outcome.Source},
			Data: payloads.TransactionClosedEvent{
				TransactionID: updated.ID,
				UserID:        updated.UserID,
				Gateway:       updated.Gateway,
				Status:        updated.Status,
				Reason:        outcome.Reason,
			},
			OccurredAt: now,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit transaction event")
		}
	}

	s.logg.Info(s.logg.WithField(logCtx, "event", "transaction.terminal"), "transaction marked terminal")
	return &TerminalResult{Transaction: updated, Changed: true}, nil
}

// closedResult reports a transaction some earlier outcome already closed. A
// success landing on a Failed or Cancelled row means money was captured with
// no order to show for it, so a refund alert is queued in the same database
// transaction.
func (s *Service) closedResult(ctx context.Context, tx *gorm.DB, txn *models.Transaction, outcome Outcome) (*TerminalResult, error) {
	result := &TerminalResult{Transaction: txn}
	if outcome.Status != enums.TransactionStatusSuccess || txn.Status == enums.TransactionStatusSuccess {
		return result, nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSettlementFailed,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Actor:         &outbox.ActorRef{UserID: txn.UserID, Source: outcome.Source},
		Data: payloads.SettlementFailedEvent{
			TransactionID:    txn.ID,
			UserID:           txn.UserID,
			Gateway:          txn.Gateway,
			GatewayPaymentID: outcome.GatewayPaymentID,
			AmountMinor:      txn.TotalMinor,
			Reason:           fmt.Sprintf("payment captured after transaction %s", txn.Status),
			Attempts:         txn.SettlementAttempts,
			NeedsRefund:      true,
		},
		OccurredAt: s.now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit late capture alert")
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"event":              "transaction.late_capture",
		"gateway_payment_id": outcome.GatewayPaymentID,
	}), "payment captured for closed transaction, refund queued")
	result.RefundQueued = true
	return result, nil
}

// RecordAttemptFailure notes a failed payment attempt without closing the
// transaction, for gateways that let the customer retry against the same
// gateway order. The pending-expiry sweep closes it if nothing is captured.
// The current row is returned either way.
func (s *Service) RecordAttemptFailure(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error) {
	if reason == "" {
		reason = "payment attempt failed"
	}
	updated, err := s.repo.RecordAttemptFailure(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithTransactionID(ctx, id.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event":   "transaction.attempt_failed",
		"reason":  reason,
		"status":  txn.Status,
		"updated": updated,
	})
	s.logg.Info(logCtx, "payment attempt failed")
	return txn, nil
}

func closedEventType(status enums.TransactionStatus) (enums.OutboxEventType, bool) {
	switch status {
	case enums.TransactionStatusFailed:
		return enums.EventTransactionFailed, true
	case enums.TransactionStatusCancelled:
		return enums.EventTransactionCancelled, true
	default:
		return "", false
	}
}

// RecordSettlementFailure counts a failed settlement attempt against a successful transaction.
func (s *Service) RecordSettlementFailure(ctx context.Context, id uuid.UUID, reason string) error {
	return s.repo.RecordSettlementFailure(ctx, id, reason)
}

// ListStalePending returns pending transactions created before the cutoff.
func (s *Service) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	return s.repo.ListStalePending(ctx, before, limit)
}

// ListUnsettledSuccess returns captured online payments still waiting for an order.
func (s *Service) ListUnsettledSuccess(ctx context.Context, maxAttempts, limit int) ([]models.Transaction, error) {
	return s.repo.ListUnsettledSuccess(ctx, maxAttempts, limit)
}
