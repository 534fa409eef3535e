package checkout

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/cart"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/payu"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/razorpay"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/inventory"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/products"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/settlement"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/dbtest"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox/payloads"
)

const (
	keySecret     = "rzp_secret"
	webhookSecret = "rzp_webhook_secret"
	payuKey       = "gtKFFx"
	payuSalt      = "eCwWELxi"
)

type fakeRegistrar struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRegistrar) Register(_ context.Context, txn *models.Transaction) (*razorpay.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	id := "order_" + txn.ID.String()[:8]
	return &razorpay.Registration{
		GatewayOrderID: id,
		Payload:        map[string]any{"orderId": id, "amount": txn.TotalMinor},
	}, nil
}

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *memoryGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, id)
	return nil
}

type harness struct {
	svc       *Service
	conn      *gorm.DB
	registrar *fakeRegistrar
	guard     *memoryGuard
	payu      *payu.Adapter
}

func newHarness(t *testing.T, prefix string) *harness {
	t.Helper()
	conn := dbtest.Open(t, prefix)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	runner := db.NewFromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	policy := pricing.Policy{
		Currency:               enums.CurrencyINR,
		TaxPercent:             decimal.NewFromInt(18),
		DiscountCeilingPercent: decimal.NewFromInt(15),
		Shipping:               pricing.ShippingPolicy{FlatFeeMinor: 5000},
	}

	txns, err := transactions.NewService(transactions.ServiceParams{
		Repository: transactions.NewRepository(conn),
		TxRunner:   runner,
		Outbox:     emitter,
		Logger:     logg,
	})
	require.NoError(t, err)
	settler, err := settlement.NewService(settlement.ServiceParams{
		Transactions: transactions.NewRepository(conn),
		Orders:       orders.NewRepository(conn),
		Carts:        cart.NewRepository(conn),
		Inventory:    inventory.NewAdjuster(),
		Pricing:      policy,
		TxRunner:     runner,
		Outbox:       emitter,
		Logger:       logg,
	})
	require.NoError(t, err)

	confirmation, err := razorpay.NewConfirmationAdapter(keySecret)
	require.NoError(t, err)
	webhook, err := razorpay.NewWebhookAdapter(webhookSecret)
	require.NoError(t, err)
	payuAdapter, err := payu.NewAdapter(payuKey, payuSalt)
	require.NoError(t, err)

	h := &harness{
		conn:      conn,
		registrar: &fakeRegistrar{},
		guard:     &memoryGuard{seen: map[string]bool{}},
		payu:      payuAdapter,
	}
	h.svc, err = NewService(ServiceParams{
		Carts:        cart.NewRepository(conn),
		Products:     products.NewRepository(conn),
		Transactions: txns,
		Settlement:   settler,
		Pricing:      policy,
		Registrar:    h.registrar,
		Confirmation: confirmation,
		Webhook:      webhook,
		PayU:         payuAdapter,
		PayUConfig:   config.PayUConfig{BaseURL: "https://test.payu.in/_payment", SuccessURL: "https://shop/ok", FailureURL: "https://shop/fail"},
		Guard:        h.guard,
		Logger:       logg,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) seedCart(t *testing.T, stock, qty int) (*models.Product, *models.Cart) {
	t.Helper()
	product := dbtest.SeedProduct(t, h.conn, "Kurta", 100000, stock, nil)
	basket := dbtest.SeedCart(t, h.conn, "user-1", models.CartItem{ProductID: product.ID, Quantity: qty})
	return product, basket
}

func (h *harness) initiate(t *testing.T, gateway enums.PaymentGateway) *InitiateResult {
	t.Helper()
	result, err := h.svc.Initiate(context.Background(), InitiateInput{
		UserID:          "user-1",
		Gateway:         gateway,
		ShippingAddress: dbtest.SampleAddress(),
		Customer:        payu.Customer{FirstName: "Asha", Email: "asha@example.com"},
	})
	require.NoError(t, err)
	return result
}

func (h *harness) transaction(t *testing.T, id uuid.UUID) models.Transaction {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, h.conn.First(&txn, "id = ?", id).Error)
	return txn
}

func (h *harness) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	return count
}

// refundAlerts decodes every settlement_failed event in the outbox.
func (h *harness) refundAlerts(t *testing.T) []payloads.SettlementFailedEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Where("event_type = ?", enums.EventSettlementFailed).Find(&rows).Error)
	alerts := make([]payloads.SettlementFailedEvent, 0, len(rows))
	for _, row := range rows {
		var envelope outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal(row.Payload, &envelope))
		var alert payloads.SettlementFailedEvent
		require.NoError(t, json.Unmarshal(envelope.Data, &alert))
		alerts = append(alerts, alert)
	}
	return alerts
}

func confirmationFor(txn *models.Transaction, paymentID string) ConfirmationInput {
	orderID := *txn.GatewayOrderID
	return ConfirmationInput{
		TransactionID: txn.ID,
		OrderID:       orderID,
		PaymentID:     paymentID,
		Signature:     razorpay.Sign(keySecret, []byte(orderID+"|"+paymentID)),
	}
}

func webhookBody(t *testing.T, event, orderID, paymentID string) []byte {
	t.Helper()
	body := map[string]any{
		"entity": "event",
		"event":  event,
		"payload": map[string]any{
			"payment": map[string]any{"entity": map[string]any{
				"id":                paymentID,
				"order_id":          orderID,
				"status":            "captured",
				"error_description": "card declined",
				"notes":             []any{},
			}},
		},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func (h *harness) payuCallback(txn *models.Transaction, status string) []byte {
	cb := payu.Callback{
		Key:         payuKey,
		TxnID:       txn.ID.String(),
		Status:      status,
		Amount:      payu.FormatAmount(txn.TotalMinor),
		ProductInfo: "Kurta",
		FirstName:   "Asha",
		Email:       "asha@example.com",
		UDF:         [5]string{txn.UserID},
	}
	form := url.Values{}
	form.Set("key", cb.Key)
	form.Set("txnid", cb.TxnID)
	form.Set("mihpayid", "403993715521")
	form.Set("status", cb.Status)
	form.Set("amount", cb.Amount)
	form.Set("productinfo", cb.ProductInfo)
	form.Set("firstname", cb.FirstName)
	form.Set("email", cb.Email)
	form.Set("udf1", cb.UDF[0])
	form.Set("hash", h.payu.ReverseHash(cb))
	return []byte(form.Encode())
}

func TestInitiateRazorpayCreatesPendingTransaction(t *testing.T) {
	h := newHarness(t, "checkout_initiate")
	product, _ := h.seedCart(t, 5, 2)

	result := h.initiate(t, enums.PaymentGatewayRazorpay)
	txn := result.Transaction
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)
	assert.Equal(t, int64(200000), txn.SubtotalMinor)
	assert.Equal(t, int64(36000), txn.TaxMinor)
	assert.Equal(t, int64(5000), txn.ShippingMinor)
	assert.Equal(t, int64(241000), txn.TotalMinor)
	require.NotNil(t, txn.GatewayOrderID)
	assert.Equal(t, *txn.GatewayOrderID, *h.transaction(t, txn.ID).GatewayOrderID)
	assert.Equal(t, 1, h.registrar.calls)
	assert.Equal(t, 5, dbtest.Stock(t, h.conn, product.ID))
}

func TestInitiateClampsDiscountOverrides(t *testing.T) {
	h := newHarness(t, "checkout_discount")
	product, _ := h.seedCart(t, 5, 1)

	result, err := h.svc.Initiate(context.Background(), InitiateInput{
		UserID:          "user-1",
		Gateway:         enums.PaymentGatewayPayU,
		ShippingAddress: dbtest.SampleAddress(),
		Discounts:       map[uuid.UUID]int64{product.ID: 50000},
	})
	require.NoError(t, err)
	line := result.Transaction.Items[0]
	assert.Equal(t, int64(15000), line.DiscountPerUnitMinor)
	assert.Equal(t, int64(85000), line.FinalUnitPriceMinor)

	request, ok := result.GatewayPayload.(payu.PaymentRequest)
	require.True(t, ok)
	assert.Equal(t, result.Transaction.ID.String(), request.Fields["txnid"])
	assert.Equal(t, payu.FormatAmount(result.Transaction.TotalMinor), request.Fields["amount"])
}

func TestInitiateValidation(t *testing.T) {
	h := newHarness(t, "checkout_validation")
	ctx := context.Background()

	_, err := h.svc.Initiate(ctx, InitiateInput{UserID: "user-1", Gateway: enums.PaymentGatewayRazorpay, ShippingAddress: dbtest.SampleAddress()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "missing cart")

	h.seedCart(t, 1, 2)
	_, err = h.svc.Initiate(ctx, InitiateInput{UserID: "user-1", Gateway: enums.PaymentGatewayRazorpay, ShippingAddress: dbtest.SampleAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "stock pre-check")
	_, ok := pkgerrors.As(err).Details().(inventory.ShortageDetails)
	assert.True(t, ok)

	_, err = h.svc.Initiate(ctx, InitiateInput{UserID: "user-1", Gateway: enums.PaymentGatewayCOD, ShippingAddress: dbtest.SampleAddress()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "cod uses its own endpoint")

	_, err = h.svc.Initiate(ctx, InitiateInput{UserID: "user-1", Gateway: enums.PaymentGatewayRazorpay})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "missing address")
	assert.Zero(t, h.registrar.calls)
}

func TestInitiateRegistrationFailureClosesTransaction(t *testing.T) {
	h := newHarness(t, "checkout_register_fail")
	h.seedCart(t, 5, 1)
	h.registrar.err = pkgerrors.New(pkgerrors.CodeDependency, "razorpay unavailable")

	_, err := h.svc.Initiate(context.Background(), InitiateInput{UserID: "user-1", Gateway: enums.PaymentGatewayRazorpay, ShippingAddress: dbtest.SampleAddress()})
	require.Error(t, err)

	var txn models.Transaction
	require.NoError(t, h.conn.First(&txn).Error)
	assert.Equal(t, enums.TransactionStatusFailed, txn.Status)
}

func TestVerifyRazorpaySettlesOrder(t *testing.T) {
	h := newHarness(t, "checkout_verify")
	product, basket := h.seedCart(t, 5, 2)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction

	result, err := h.svc.VerifyRazorpay(context.Background(), confirmationFor(txn, "pay_1"))
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, enums.TransactionStatusSuccess, result.Transaction.Status)
	assert.Equal(t, int64(241000), result.Order.TotalMinor)
	assert.Equal(t, 3, dbtest.Stock(t, h.conn, product.ID))

	var carts int64
	require.NoError(t, h.conn.Model(&models.Cart{}).Where("id = ?", basket.ID).Count(&carts).Error)
	assert.Zero(t, carts)

	again, err := h.svc.VerifyRazorpay(context.Background(), confirmationFor(txn, "pay_1"))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, result.Order.ID, again.Order.ID)
	assert.Equal(t, 3, dbtest.Stock(t, h.conn, product.ID))
}

func TestVerifyRazorpayRejectsBadSignature(t *testing.T) {
	h := newHarness(t, "checkout_verify_bad")
	h.seedCart(t, 5, 2)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction

	input := confirmationFor(txn, "pay_1")
	input.Signature = razorpay.Sign("wrong-secret", []byte(input.OrderID+"|"+input.PaymentID))
	_, err := h.svc.VerifyRazorpay(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignatureInvalid))
	assert.Equal(t, enums.TransactionStatusPending, h.transaction(t, txn.ID).Status)

	input = confirmationFor(txn, "pay_1")
	input.OrderID = "order_other"
	_, err = h.svc.VerifyRazorpay(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.orderCount(t))
}

func TestVerifyRazorpayOnClosedTransaction(t *testing.T) {
	h := newHarness(t, "checkout_verify_closed")
	h.seedCart(t, 5, 1)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction
	require.NoError(t, h.conn.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		Update("status", enums.TransactionStatusCancelled).Error)

	_, err := h.svc.VerifyRazorpay(context.Background(), confirmationFor(txn, "pay_1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, h.orderCount(t))

	alerts := h.refundAlerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, txn.ID, alerts[0].TransactionID)
	assert.Equal(t, "pay_1", alerts[0].GatewayPaymentID)
	assert.Equal(t, txn.TotalMinor, alerts[0].AmountMinor)
	assert.True(t, alerts[0].NeedsRefund)
}

func TestHandleRazorpayWebhookCaptureAfterExpiryQueuesRefund(t *testing.T) {
	h := newHarness(t, "checkout_webhook_late")
	product, _ := h.seedCart(t, 5, 2)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction
	ctx := context.Background()

	_, err := h.svc.transactions.MarkTerminal(ctx, txn.ID, transactions.Outcome{
		Status: enums.TransactionStatusCancelled,
		Reason: "expired",
		Source: "cron",
	})
	require.NoError(t, err)

	raw := webhookBody(t, razorpay.EventPaymentCaptured, *txn.GatewayOrderID, "pay_late")
	result, err := h.svc.HandleRazorpayWebhook(ctx, raw, razorpay.Sign(webhookSecret, raw), "evt_late")
	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Zero(t, h.orderCount(t))
	assert.Equal(t, 5, dbtest.Stock(t, h.conn, product.ID))

	alerts := h.refundAlerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, "pay_late", alerts[0].GatewayPaymentID)
	assert.True(t, alerts[0].NeedsRefund)
}

func TestHandlePayUCallback(t *testing.T) {
	t.Run("success settles", func(t *testing.T) {
		h := newHarness(t, "checkout_payu_ok")
		product, _ := h.seedCart(t, 5, 2)
		txn := h.initiate(t, enums.PaymentGatewayPayU).Transaction

		result, err := h.svc.HandlePayUCallback(context.Background(), h.payuCallback(txn, "success"))
		require.NoError(t, err)
		assert.True(t, result.Verified)
		require.NotNil(t, result.Order)
		assert.Equal(t, enums.PaymentMethodOnlineGatewayB, result.Order.PaymentMethod)
		assert.Equal(t, 3, dbtest.Stock(t, h.conn, product.ID))
		require.NotNil(t, h.transaction(t, txn.ID).GatewayPaymentID)
	})

	t.Run("failure status fails transaction", func(t *testing.T) {
		h := newHarness(t, "checkout_payu_failure")
		h.seedCart(t, 5, 2)
		txn := h.initiate(t, enums.PaymentGatewayPayU).Transaction

		result, err := h.svc.HandlePayUCallback(context.Background(), h.payuCallback(txn, "failure"))
		require.NoError(t, err)
		assert.Nil(t, result.Order)
		assert.Equal(t, enums.TransactionStatusFailed, result.Transaction.Status)
	})

	t.Run("failure after success does not settle", func(t *testing.T) {
		h := newHarness(t, "checkout_payu_late_failure")
		h.seedCart(t, 5, 2)
		txn := h.initiate(t, enums.PaymentGatewayPayU).Transaction
		require.NoError(t, h.conn.Model(&models.Transaction{}).Where("id = ?", txn.ID).
			Update("status", enums.TransactionStatusSuccess).Error)

		result, err := h.svc.HandlePayUCallback(context.Background(), h.payuCallback(txn, "failure"))
		require.NoError(t, err)
		assert.Nil(t, result.Order)
		assert.Equal(t, enums.TransactionStatusSuccess, result.Transaction.Status)

		stored := h.transaction(t, txn.ID)
		assert.Zero(t, stored.SettlementAttempts)
		assert.Zero(t, h.orderCount(t))
		assert.Empty(t, h.refundAlerts(t))
	})

	t.Run("hash mismatch fails transaction", func(t *testing.T) {
		h := newHarness(t, "checkout_payu_tampered")
		product, _ := h.seedCart(t, 5, 2)
		txn := h.initiate(t, enums.PaymentGatewayPayU).Transaction

		form, err := url.ParseQuery(string(h.payuCallback(txn, "success")))
		require.NoError(t, err)
		form.Set("amount", "1.00")

		result, err := h.svc.HandlePayUCallback(context.Background(), []byte(form.Encode()))
		require.NoError(t, err)
		assert.False(t, result.Verified)
		stored := h.transaction(t, txn.ID)
		assert.Equal(t, enums.TransactionStatusFailed, stored.Status)
		require.NotNil(t, stored.FailureReason)
		assert.Equal(t, "hash mismatch", *stored.FailureReason)
		assert.Equal(t, 5, dbtest.Stock(t, h.conn, product.ID))
	})
}

func TestHandleRazorpayWebhook(t *testing.T) {
	h := newHarness(t, "checkout_webhook")
	product, _ := h.seedCart(t, 5, 2)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction
	ctx := context.Background()

	raw := webhookBody(t, razorpay.EventPaymentCaptured, *txn.GatewayOrderID, "pay_9")

	_, err := h.svc.HandleRazorpayWebhook(ctx, raw, razorpay.Sign("nope", raw), "evt_1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignatureInvalid))
	assert.Equal(t, enums.TransactionStatusPending, h.transaction(t, txn.ID).Status)
	assert.Empty(t, h.guard.seen)

	result, err := h.svc.HandleRazorpayWebhook(ctx, raw, razorpay.Sign(webhookSecret, raw), "evt_1")
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, 3, dbtest.Stock(t, h.conn, product.ID))

	dup, err := h.svc.HandleRazorpayWebhook(ctx, raw, razorpay.Sign(webhookSecret, raw), "evt_1")
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, int64(1), h.orderCount(t))

	other := webhookBody(t, "refund.created", *txn.GatewayOrderID, "pay_9")
	ignored, err := h.svc.HandleRazorpayWebhook(ctx, other, razorpay.Sign(webhookSecret, other), "evt_2")
	require.NoError(t, err)
	assert.True(t, ignored.Ignored)
}

func TestHandleRazorpayWebhookFailedPayment(t *testing.T) {
	h := newHarness(t, "checkout_webhook_failed")
	h.seedCart(t, 5, 2)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction

	raw := webhookBody(t, razorpay.EventPaymentFailed, *txn.GatewayOrderID, "pay_7")
	result, err := h.svc.HandleRazorpayWebhook(context.Background(), raw, razorpay.Sign(webhookSecret, raw), "")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, result.Transaction.Status)

	stored := h.transaction(t, txn.ID)
	assert.Equal(t, enums.TransactionStatusPending, stored.Status)
	assert.Nil(t, stored.TerminalAt)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "card declined", *stored.FailureReason)
	assert.True(t, h.guard.seen["pay_7:"+razorpay.EventPaymentFailed])
}

func TestRazorpayRetryAfterFailedAttemptSettles(t *testing.T) {
	h := newHarness(t, "checkout_webhook_retry")
	product, _ := h.seedCart(t, 5, 2)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction
	ctx := context.Background()

	failed := webhookBody(t, razorpay.EventPaymentFailed, *txn.GatewayOrderID, "pay_1")
	_, err := h.svc.HandleRazorpayWebhook(ctx, failed, razorpay.Sign(webhookSecret, failed), "evt_failed")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, h.transaction(t, txn.ID).Status)

	captured := webhookBody(t, razorpay.EventPaymentCaptured, *txn.GatewayOrderID, "pay_2")
	result, err := h.svc.HandleRazorpayWebhook(ctx, captured, razorpay.Sign(webhookSecret, captured), "evt_captured")
	require.NoError(t, err)
	assert.False(t, result.Ignored)
	require.NotNil(t, result.Order)
	assert.Equal(t, 3, dbtest.Stock(t, h.conn, product.ID))

	verified, err := h.svc.VerifyRazorpay(ctx, confirmationFor(txn, "pay_2"))
	require.NoError(t, err)
	assert.True(t, verified.Replayed)
	assert.Equal(t, result.Order.ID, verified.Order.ID)

	stored := h.transaction(t, txn.ID)
	assert.Equal(t, enums.TransactionStatusSuccess, stored.Status)
	require.NotNil(t, stored.GatewayPaymentID)
	assert.Equal(t, "pay_2", *stored.GatewayPaymentID)
	assert.Equal(t, int64(1), h.orderCount(t))
	assert.Empty(t, h.refundAlerts(t))

	var closed int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventTransactionFailed).Count(&closed).Error)
	assert.Zero(t, closed)
}

func TestHandleRazorpayWebhookUnknownOrderReleasesGuard(t *testing.T) {
	h := newHarness(t, "checkout_webhook_unknown")
	raw := webhookBody(t, razorpay.EventPaymentCaptured, "order_missing", "pay_3")

	_, err := h.svc.HandleRazorpayWebhook(context.Background(), raw, razorpay.Sign(webhookSecret, raw), "evt_9")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.False(t, h.guard.seen["evt_9"])
}

func TestConcurrentConfirmationsSettleOnce(t *testing.T) {
	h := newHarness(t, "checkout_race")
	product, _ := h.seedCart(t, 5, 2)
	txn := h.initiate(t, enums.PaymentGatewayRazorpay).Transaction
	raw := webhookBody(t, razorpay.EventPaymentCaptured, *txn.GatewayOrderID, "pay_1")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 2; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.svc.VerifyRazorpay(context.Background(), confirmationFor(txn, "pay_1"))
			errs <- err
		}()
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.HandleRazorpayWebhook(context.Background(), raw, razorpay.Sign(webhookSecret, raw), "evt_"+string(rune('a'+i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), h.orderCount(t))
	assert.Equal(t, 3, dbtest.Stock(t, h.conn, product.ID))
}

func TestPlaceCOD(t *testing.T) {
	h := newHarness(t, "checkout_cod")
	product, _ := h.seedCart(t, 5, 2)

	result, err := h.svc.PlaceCOD(context.Background(), CODInput{
		UserID:          "user-1",
		ShippingAddress: dbtest.SampleAddress(),
		Discounts:       map[uuid.UUID]int64{product.ID: 10000},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, enums.PaymentGatewayCOD, result.Transaction.Gateway)
	assert.Equal(t, enums.TransactionStatusSuccess, result.Transaction.Status)
	assert.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)
	assert.Equal(t, int64(90000), result.Order.Items[0].FinalUnitPriceMinor)
	assert.Equal(t, 3, dbtest.Stock(t, h.conn, product.ID))

	_, err = h.svc.PlaceCOD(context.Background(), CODInput{UserID: "user-1", ShippingAddress: dbtest.SampleAddress()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "cart is gone after settlement")
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
