// Package checkout is the entry point for every payment path: online
// initiation, Razorpay client confirmation, PayU callbacks, Razorpay webhooks
// and cash-on-delivery placement. Each path funnels into the same transaction
// transition and settlement.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/cart"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/cod"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/payu"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/razorpay"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/inventory"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/settlement"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/webhooks"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/metrics"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// TransactionManager is the slice of the transaction service checkout drives.
type TransactionManager interface {
	Initiate(ctx context.Context, params transactions.InitiateParams) (*models.Transaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByGatewayOrderID(ctx context.Context, gateway enums.PaymentGateway, gatewayOrderID string) (*models.Transaction, error)
	SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) error
	MarkTerminal(ctx context.Context, id uuid.UUID, outcome transactions.Outcome) (*transactions.TerminalResult, error)
	RecordAttemptFailure(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error)
}

// ProductReader loads catalog rows for the cart snapshot.
type ProductReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// OrderRegistrar creates the Razorpay order a checkout widget pays against.
type OrderRegistrar interface {
	Register(ctx context.Context, txn *models.Transaction) (*razorpay.Registration, error)
}

// PayUGateway verifies PayU callbacks and signs outgoing payment forms.
type PayUGateway interface {
	gateways.Adapter
	BuildPaymentRequest(cfg config.PayUConfig, txn *models.Transaction, customer payu.Customer) payu.PaymentRequest
}

// WebhookVerifier verifies and decodes Razorpay webhooks.
type WebhookVerifier interface {
	Verify(raw []byte, signature string) bool
	Decode(raw []byte) (razorpay.WebhookEvent, error)
}

// ServiceParams wires checkout. Gateway collaborators are optional; a path
// whose gateway is not configured answers with a validation error.
type ServiceParams struct {
	Carts        cart.CartRepository
	Products     ProductReader
	Transactions TransactionManager
	Settlement   settlement.Settler
	Pricing      pricing.Policy

	Registrar    OrderRegistrar
	Confirmation gateways.Adapter
	Webhook      WebhookVerifier
	PayU         PayUGateway
	PayUConfig   config.PayUConfig
	COD          gateways.Adapter
	Guard        webhooks.Guard

	Metrics *metrics.SettlementMetrics
	Logger  *logger.Logger
}

type Service struct {
	carts        cart.CartRepository
	products     ProductReader
	transactions TransactionManager
	settlement   settlement.Settler
	policy       pricing.Policy

	registrar    OrderRegistrar
	confirmation gateways.Adapter
	webhook      WebhookVerifier
	payu         PayUGateway
	payuCfg      config.PayUConfig
	cod          gateways.Adapter
	guard        webhooks.Guard

	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction manager required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	codAdapter := params.COD
	if codAdapter == nil {
		codAdapter = cod.NewAdapter()
	}
	return &Service{
		carts:        params.Carts,
		products:     params.Products,
		transactions: params.Transactions,
		settlement:   params.Settlement,
		policy:       params.Pricing,
		registrar:    params.Registrar,
		confirmation: params.Confirmation,
		webhook:      params.Webhook,
		payu:         params.PayU,
		payuCfg:      params.PayUConfig,
		cod:          codAdapter,
		guard:        params.Guard,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Initiate prices the cart, persists a pending transaction and registers it
// with the chosen online gateway.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if !input.Gateway.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment gateway").WithDetails(map[string]any{"gateway": input.Gateway})
	}
	if !input.Gateway.IsOnline() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery is placed through the cod endpoint")
	}
	if input.Gateway == enums.PaymentGatewayRazorpay && s.registrar == nil {
		return nil, notConfigured(input.Gateway)
	}
	if input.Gateway == enums.PaymentGatewayPayU && s.payu == nil {
		return nil, notConfigured(input.Gateway)
	}

	snap, err := s.snapshot(ctx, input.UserID, input.ShippingAddress, input.Discounts)
	if err != nil {
		return nil, err
	}
	txn, err := s.transactions.Initiate(ctx, transactions.InitiateParams{
		UserID:          snap.userID,
		CartID:          &snap.cart.ID,
		Items:           snap.items,
		ShippingAddress: snap.address,
		Totals:          snap.totals,
		Currency:        s.policy.Currency,
		Gateway:         input.Gateway,
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	ctx = s.logg.WithGateway(ctx, input.Gateway.String())

	var (
		gatewayOrderID string
		payload        any
	)
	switch input.Gateway {
	case enums.PaymentGatewayRazorpay:
		reg, err := s.registrar.Register(ctx, txn)
		if err != nil {
			s.abandon(ctx, txn.ID, "gateway registration failed")
			return nil, err
		}
		gatewayOrderID = reg.GatewayOrderID
		payload = reg.Payload
	case enums.PaymentGatewayPayU:
		gatewayOrderID = txn.ID.String()
		payload = s.payu.BuildPaymentRequest(s.payuCfg, txn, input.Customer)
	}

	if err := s.transactions.SetGatewayOrderID(ctx, txn.ID, gatewayOrderID); err != nil {
		return nil, err
	}
	txn.GatewayOrderID = &gatewayOrderID

	s.logg.Info(s.logg.WithField(ctx, "gateway_order_id", gatewayOrderID), "checkout initiated")
	return &InitiateResult{
		Transaction:    txn,
		Totals:         snap.totals,
		Gateway:        input.Gateway,
		GatewayPayload: payload,
	}, nil
}

// VerifyRazorpay applies the signed confirmation the Razorpay widget hands the client.
func (s *Service) VerifyRazorpay(ctx context.Context, input ConfirmationInput) (*Result, error) {
	if s.confirmation == nil {
		return nil, notConfigured(enums.PaymentGatewayRazorpay)
	}
	ctx = s.logg.WithTransactionID(ctx, input.TransactionID.String())
	ctx = s.logg.WithGateway(ctx, enums.PaymentGatewayRazorpay.String())

	txn, err := s.transactions.FindByID(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.Gateway != enums.PaymentGatewayRazorpay {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a razorpay payment")
	}
	if txn.GatewayOrderID == nil || *txn.GatewayOrderID != strings.TrimSpace(input.OrderID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay order id does not match transaction")
	}

	raw, err := json.Marshal(razorpay.Confirmation{
		PaymentID:     input.PaymentID,
		OrderID:       input.OrderID,
		Signature:     input.Signature,
		TransactionID: input.TransactionID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode confirmation")
	}
	if !s.confirmation.Verify(raw, input.Signature) {
		s.metrics.IncConfirmation(enums.PaymentGatewayRazorpay.String(), "invalid_signature")
		s.logg.Warn(ctx, "razorpay confirmation signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment signature verification failed")
	}

	outcome, err := s.confirmation.ExtractOutcome(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid confirmation")
	}
	result, err := s.apply(ctx, txn.ID, outcome, input.Signature, "razorpay_verify")
	if err != nil {
		return nil, err
	}
	result.Verified = true
	return result, nil
}

// HandlePayUCallback applies the form PayU posts back. A hash mismatch fails
// the transaction instead of returning an error so the redirect can render.
func (s *Service) HandlePayUCallback(ctx context.Context, raw []byte) (*Result, error) {
	if s.payu == nil {
		return nil, notConfigured(enums.PaymentGatewayPayU)
	}
	cb, err := payu.ParseCallback(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payu callback")
	}
	txnID, err := uuid.Parse(cb.TxnID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payu txnid is not a transaction id").WithDetails(map[string]any{"txnid": cb.TxnID})
	}
	ctx = s.logg.WithTransactionID(ctx, txnID.String())
	ctx = s.logg.WithGateway(ctx, enums.PaymentGatewayPayU.String())

	txn, err := s.transactions.FindByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Gateway != enums.PaymentGatewayPayU {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a payu payment")
	}

	if !s.payu.Verify(raw, "") {
		s.metrics.IncConfirmation(enums.PaymentGatewayPayU.String(), "invalid_signature")
		s.logg.Warn(ctx, "payu callback hash mismatch")
		res, err := s.transactions.MarkTerminal(ctx, txn.ID, transactions.Outcome{
			Status: enums.TransactionStatusFailed,
			Reason: "hash mismatch",
			Source: "payu_callback",
		})
		if err != nil {
			return nil, err
		}
		return &Result{Transaction: res.Transaction}, nil
	}

	outcome, err := s.payu.ExtractOutcome(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payu callback")
	}
	result, err := s.apply(ctx, txn.ID, outcome, cb.Hash, "payu_callback")
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		s.logg.Warn(ctx, "payu success reported for a closed transaction")
		current, findErr := s.transactions.FindByID(ctx, txn.ID)
		if findErr != nil {
			return nil, findErr
		}
		return &Result{Transaction: current, Verified: true, Ignored: true}, nil
	}
	if err != nil {
		return nil, err
	}
	result.Verified = true
	return result, nil
}

// HandleRazorpayWebhook verifies the delivery before touching any state, then
// applies it once per delivery id.
func (s *Service) HandleRazorpayWebhook(ctx context.Context, raw []byte, signature, deliveryHeader string) (*Result, error) {
	if s.webhook == nil {
		return nil, notConfigured(enums.PaymentGatewayRazorpay)
	}
	ctx = s.logg.WithGateway(ctx, enums.PaymentGatewayRazorpay.String())
	if !s.webhook.Verify(raw, signature) {
		s.metrics.IncConfirmation(enums.PaymentGatewayRazorpay.String(), "invalid_signature")
		s.logg.Warn(ctx, "razorpay webhook signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "webhook signature verification failed")
	}
	event, err := s.webhook.Decode(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	ctx = s.logg.WithField(ctx, "webhook_event", event.Event)

	outcome, err := razorpay.OutcomeFromEvent(event)
	if errors.Is(err, gateways.ErrUnsupportedEvent) {
		s.logg.Info(ctx, "razorpay webhook ignored")
		return &Result{Verified: true, Ignored: true}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}

	deliveryID := event.DeliveryID(deliveryHeader)
	if s.guard != nil && deliveryID != "" {
		seen, err := s.guard.CheckAndMark(ctx, deliveryID)
		if err != nil {
			s.logg.Error(ctx, "webhook idempotency check failed", err)
		} else if seen {
			s.logg.Info(s.logg.WithField(ctx, "delivery_id", deliveryID), "razorpay webhook already processed")
			return &Result{Verified: true, Duplicate: true}, nil
		}
	}

	result, err := s.applyWebhook(ctx, outcome)
	if err != nil {
		if s.guard != nil && deliveryID != "" {
			if delErr := s.guard.Delete(ctx, deliveryID); delErr != nil {
				s.logg.Error(ctx, "failed to release webhook idempotency key", delErr)
			}
		}
		return nil, err
	}
	result.Verified = true
	return result, nil
}

func (s *Service) applyWebhook(ctx context.Context, outcome gateways.Outcome) (*Result, error) {
	txn, err := s.resolveWebhookTransaction(ctx, outcome)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())

	// payment.failed covers one attempt; the customer may still pay the same
	// Razorpay order, so the transaction stays open until expiry.
	if !outcome.Succeeded {
		current, err := s.transactions.RecordAttemptFailure(ctx, txn.ID, outcome.Reason)
		if err != nil {
			return nil, err
		}
		s.metrics.IncConfirmation(outcome.Gateway.String(), "attempt_failed")
		return &Result{Transaction: current}, nil
	}

	result, err := s.apply(ctx, txn.ID, outcome, "", "razorpay_webhook")
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		s.logg.Warn(ctx, "razorpay success reported for a closed transaction")
		return &Result{Transaction: txn, Ignored: true}, nil
	}
	return result, err
}

func (s *Service) resolveWebhookTransaction(ctx context.Context, outcome gateways.Outcome) (*models.Transaction, error) {
	if outcome.GatewayOrderID != "" {
		txn, err := s.transactions.FindByGatewayOrderID(ctx, enums.PaymentGatewayRazorpay, outcome.GatewayOrderID)
		if err == nil {
			return txn, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
	}
	id, err := uuid.Parse(outcome.TransactionRef)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no transaction for razorpay order").
			WithDetails(map[string]any{"gateway_order_id": outcome.GatewayOrderID})
	}
	return s.transactions.FindByID(ctx, id)
}

// PlaceCOD snapshots the cart into an already successful transaction and
// settles it inline.
func (s *Service) PlaceCOD(ctx context.Context, input CODInput) (*Result, error) {
	snap, err := s.snapshot(ctx, input.UserID, input.ShippingAddress, input.Discounts)
	if err != nil {
		return nil, err
	}
	txn, err := s.transactions.Initiate(ctx, transactions.InitiateParams{
		UserID:          snap.userID,
		CartID:          &snap.cart.ID,
		Items:           snap.items,
		ShippingAddress: snap.address,
		Totals:          snap.totals,
		Currency:        s.policy.Currency,
		Gateway:         enums.PaymentGatewayCOD,
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	ctx = s.logg.WithGateway(ctx, enums.PaymentGatewayCOD.String())

	outcome, err := s.cod.ExtractOutcome([]byte(txn.ID.String()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cod outcome")
	}
	s.metrics.IncConfirmation(outcome.Gateway.String(), string(outcome.Status()))

	settled, err := s.settlement.Settle(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: txn, Order: settled.Order, Replayed: settled.Replayed, Verified: true}, nil
}

// apply moves the transaction to the outcome's terminal status and settles
// it when a success leaves it Success. A success reported for a transaction
// that was already closed is a STATE_CONFLICT; the transaction manager has
// queued a refund alert for it by then.
func (s *Service) apply(ctx context.Context, txnID uuid.UUID, outcome gateways.Outcome, signature, source string) (*Result, error) {
	terminal, err := s.transactions.MarkTerminal(ctx, txnID, transactions.Outcome{
		Status:           outcome.Status(),
		GatewayPaymentID: outcome.GatewayPaymentID,
		Signature:        signature,
		Reason:           outcome.Reason,
		Source:           source,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncConfirmation(outcome.Gateway.String(), string(outcome.Status()))

	txn := terminal.Transaction
	if !outcome.Succeeded {
		return &Result{Transaction: txn}, nil
	}
	if txn.Status != enums.TransactionStatusSuccess {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is already closed").WithDetails(map[string]any{
			"status":        txn.Status,
			"refund_queued": terminal.RefundQueued,
		})
	}

	settled, err := s.settlement.Settle(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: txn, Order: settled.Order, Replayed: settled.Replayed}, nil
}

func (s *Service) abandon(ctx context.Context, id uuid.UUID, reason string) {
	_, err := s.transactions.MarkTerminal(ctx, id, transactions.Outcome{
		Status: enums.TransactionStatusFailed,
		Reason: reason,
		Source: "checkout",
	})
	if err != nil {
		s.logg.Error(ctx, "failed to close abandoned transaction", err)
	}
}

type cartSnapshot struct {
	userID  string
	cart    *models.Cart
	items   types.LineItems
	totals  pricing.Totals
	address types.Address
}

// snapshot loads the cart, runs the stock pre-check and prices every line.
func (s *Service) snapshot(ctx context.Context, userID string, address types.Address, discounts map[uuid.UUID]int64) (*cartSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "userId is required")
	}
	address = address.Normalized()
	if err := address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	basket, err := s.carts.FindByUserID(ctx, userID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err != nil {
		return nil, err
	}
	if len(basket.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(basket.Items))
	for _, item := range basket.Items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make(types.LineItems, 0, len(basket.Items))
	for _, item := range basket.Items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if err := inventory.CheckProduct(product, item.VariantName, item.Quantity); err != nil {
			return nil, err
		}
		proposed := item.ProposedDiscountMinor
		if override, ok := discounts[item.ProductID]; ok {
			proposed = override
		}
		lines = append(lines, types.LineItem{
			ProductID:            product.ID,
			Name:                 product.Name,
			VariantName:          item.VariantName,
			Quantity:             item.Quantity,
			UnitPriceMinor:       product.PriceMinor,
			DiscountPerUnitMinor: proposed,
		})
	}
	priced, totals := s.policy.Price(lines)
	return &cartSnapshot{
		userID:  userID,
		cart:    basket,
		items:   priced,
		totals:  totals,
		address: address,
	}, nil
}

func notConfigured(gateway enums.PaymentGateway) error {
	return pkgerrors.New(pkgerrors.CodeValidation, gateway.String()+" is not configured")
}
