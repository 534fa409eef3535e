package transactions

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/dbtest"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

func newTestService(t *testing.T, prefix string) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, prefix)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		TxRunner:   db.NewFromConn(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:     logg,
	})
	require.NoError(t, err)
	return svc, conn
}

func sampleItems() types.LineItems {
	return types.LineItems{{
		ProductID:           uuid.New(),
		Name:                "Kurta",
		Quantity:            2,
		UnitPriceMinor:      100000,
		FinalUnitPriceMinor: 100000,
	}}
}

func TestInitiateCreatesPendingTransaction(t *testing.T) {
	svc, _ := newTestService(t, "txn_initiate")

	txn, err := svc.Initiate(context.Background(), InitiateParams{
		UserID:          "user-1",
		Items:           sampleItems(),
		ShippingAddress: dbtest.SampleAddress(),
		Totals:          pricing.Totals{SubtotalMinor: 200000, TaxMinor: 36000, ShippingMinor: 5000, GrandTotalMinor: 241000},
		Currency:        enums.CurrencyINR,
		Gateway:         enums.PaymentGatewayRazorpay,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)
	assert.Nil(t, txn.TerminalAt)

	stored, err := svc.FindByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(241000), stored.TotalMinor)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Kurta", stored.Items[0].Name)
	assert.Equal(t, "IN", stored.ShippingAddress.Country)
}

func TestInitiateCODStartsSuccess(t *testing.T) {
	svc, _ := newTestService(t, "txn_initiate_cod")

	txn, err := svc.Initiate(context.Background(), InitiateParams{
		UserID:          "user-1",
		Items:           sampleItems(),
		ShippingAddress: dbtest.SampleAddress(),
		Currency:        enums.CurrencyINR,
		Gateway:         enums.PaymentGatewayCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccess, txn.Status)
	assert.NotNil(t, txn.TerminalAt)
}

func TestInitiateValidation(t *testing.T) {
	svc, conn := newTestService(t, "txn_initiate_invalid")
	base := InitiateParams{
		UserID:          "user-1",
		Items:           sampleItems(),
		ShippingAddress: dbtest.SampleAddress(),
		Currency:        enums.CurrencyINR,
		Gateway:         enums.PaymentGatewayPayU,
	}

	cases := map[string]func(p *InitiateParams){
		"empty cart":   func(p *InitiateParams) { p.Items = nil },
		"no user":      func(p *InitiateParams) { p.UserID = "" },
		"zero qty":     func(p *InitiateParams) { p.Items = types.LineItems{{ProductID: uuid.New(), Quantity: 0}} },
		"bad gateway":  func(p *InitiateParams) { p.Gateway = "paypal" },
		"bad currency": func(p *InitiateParams) { p.Currency = "EUR" },
		"bad address":  func(p *InitiateParams) { p.ShippingAddress = types.Address{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			params := base
			mutate(&params)
			_, err := svc.Initiate(context.Background(), params)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, conn.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMarkTerminalTransitionsOnce(t *testing.T) {
	svc, conn := newTestService(t, "txn_terminal")
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayRazorpay, enums.TransactionStatusPending, sampleItems())

	first, err := svc.MarkTerminal(context.Background(), txn.ID, Outcome{
		Status:           enums.TransactionStatusSuccess,
		GatewayPaymentID: "pay_1",
		Signature:        "sig",
	})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, enums.TransactionStatusSuccess, first.Transaction.Status)
	require.NotNil(t, first.Transaction.GatewayPaymentID)
	assert.Equal(t, "pay_1", *first.Transaction.GatewayPaymentID)
	assert.NotNil(t, first.Transaction.TerminalAt)

	second, err := svc.MarkTerminal(context.Background(), txn.ID, Outcome{
		Status: enums.TransactionStatusFailed,
		Reason: "late failure",
	})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, enums.TransactionStatusSuccess, second.Transaction.Status)
	assert.Nil(t, second.Transaction.FailureReason)
}

func TestMarkTerminalFailedEmitsOutboxEvent(t *testing.T) {
	svc, conn := newTestService(t, "txn_failed_event")
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayPayU, enums.TransactionStatusPending, sampleItems())

	res, err := svc.MarkTerminal(context.Background(), txn.ID, Outcome{
		Status: enums.TransactionStatusFailed,
		Reason: "hash mismatch",
	})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.NotNil(t, res.Transaction.FailureReason)
	assert.Equal(t, "hash mismatch", *res.Transaction.FailureReason)

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventTransactionFailed, events[0].EventType)
	assert.Equal(t, txn.ID, events[0].AggregateID)
}

func TestMarkTerminalSuccessOnClosedTransactionQueuesRefund(t *testing.T) {
	svc, conn := newTestService(t, "txn_late_capture")
	ctx := context.Background()
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayRazorpay, enums.TransactionStatusPending, sampleItems())

	_, err := svc.MarkTerminal(ctx, txn.ID, Outcome{Status: enums.TransactionStatusCancelled, Reason: "expired"})
	require.NoError(t, err)

	res, err := svc.MarkTerminal(ctx, txn.ID, Outcome{
		Status:           enums.TransactionStatusSuccess,
		GatewayPaymentID: "pay_late",
		Source:           "razorpay_webhook",
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.True(t, res.RefundQueued)
	assert.Equal(t, enums.TransactionStatusCancelled, res.Transaction.Status)

	var events []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", enums.EventSettlementFailed).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, txn.ID, events[0].AggregateID)
	assert.Contains(t, string(events[0].Payload), `"needs_refund":true`)
	assert.Contains(t, string(events[0].Payload), `"gateway_payment_id":"pay_late"`)

	again, err := svc.MarkTerminal(ctx, txn.ID, Outcome{Status: enums.TransactionStatusFailed, Reason: "declined"})
	require.NoError(t, err)
	assert.False(t, again.RefundQueued)
}

func TestMarkTerminalRepeatedSuccessQueuesNothing(t *testing.T) {
	svc, conn := newTestService(t, "txn_repeat_success")
	ctx := context.Background()
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayPayU, enums.TransactionStatusPending, sampleItems())

	for i := 0; i < 2; i++ {
		res, err := svc.MarkTerminal(ctx, txn.ID, Outcome{Status: enums.TransactionStatusSuccess})
		require.NoError(t, err)
		assert.False(t, res.RefundQueued)
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordAttemptFailureKeepsTransactionPending(t *testing.T) {
	svc, conn := newTestService(t, "txn_attempt_failure")
	ctx := context.Background()
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayRazorpay, enums.TransactionStatusPending, sampleItems())

	current, err := svc.RecordAttemptFailure(ctx, txn.ID, "card declined")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, current.Status)
	assert.Nil(t, current.TerminalAt)
	require.NotNil(t, current.FailureReason)
	assert.Equal(t, "card declined", *current.FailureReason)

	res, err := svc.MarkTerminal(ctx, txn.ID, Outcome{Status: enums.TransactionStatusSuccess, GatewayPaymentID: "pay_2"})
	require.NoError(t, err)
	assert.True(t, res.Changed)

	closed, err := svc.RecordAttemptFailure(ctx, txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccess, closed.Status)
	assert.Equal(t, "card declined", *closed.FailureReason)

	_, err = svc.RecordAttemptFailure(ctx, uuid.New(), "card declined")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMarkTerminalRejectsNonTerminalStatus(t *testing.T) {
	svc, conn := newTestService(t, "txn_pending_target")
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayPayU, enums.TransactionStatusPending, sampleItems())

	_, err := svc.MarkTerminal(context.Background(), txn.ID, Outcome{Status: enums.TransactionStatusPending})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.MarkTerminal(context.Background(), uuid.New(), Outcome{Status: enums.TransactionStatusFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMarkTerminalConcurrentCallsChangeOnce(t *testing.T) {
	svc, conn := newTestService(t, "txn_concurrent")
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayRazorpay, enums.TransactionStatusPending, sampleItems())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*TerminalResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := enums.TransactionStatusSuccess
			if i%2 == 1 {
				status = enums.TransactionStatusCancelled
			}
			results[i], errs[i] = svc.MarkTerminal(context.Background(), txn.ID, Outcome{Status: status})
		}(i)
	}
	wg.Wait()

	changed := 0
	var final enums.TransactionStatus
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if results[i].Changed {
			changed++
			final = results[i].Transaction.Status
		}
	}
	assert.Equal(t, 1, changed)

	stored, err := svc.FindByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, final, stored.Status)
}

func TestGatewayOrderIDAndLookups(t *testing.T) {
	svc, conn := newTestService(t, "txn_gateway_order")
	ctx := context.Background()
	txn := dbtest.SeedTransaction(t, conn, "user-1", enums.PaymentGatewayRazorpay, enums.TransactionStatusPending, sampleItems())

	require.NoError(t, svc.SetGatewayOrderID(ctx, txn.ID, "order_abc"))
	found, err := svc.FindByGatewayOrderID(ctx, enums.PaymentGatewayRazorpay, "order_abc")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)

	_, err = svc.FindByGatewayOrderID(ctx, enums.PaymentGatewayPayU, "order_abc")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.MarkTerminal(ctx, txn.ID, Outcome{Status: enums.TransactionStatusCancelled, Reason: "expired"})
	require.NoError(t, err)
	err = svc.SetGatewayOrderID(ctx, txn.ID, "order_late")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestReconciliationQueries(t *testing.T) {
	svc, conn := newTestService(t, "txn_reconcile_queries")
	ctx := context.Background()

	stale := dbtest.SeedTransaction(t, conn, "u1", enums.PaymentGatewayRazorpay, enums.TransactionStatusPending, sampleItems())
	require.NoError(t, conn.Model(&models.Transaction{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().UTC().Add(-2*time.Hour)).Error)
	dbtest.SeedTransaction(t, conn, "u2", enums.PaymentGatewayRazorpay, enums.TransactionStatusPending, sampleItems())

	unsettled := dbtest.SeedTransaction(t, conn, "u3", enums.PaymentGatewayPayU, enums.TransactionStatusSuccess, sampleItems())
	dbtest.SeedTransaction(t, conn, "u4", enums.PaymentGatewayCOD, enums.TransactionStatusSuccess, sampleItems())
	exhausted := dbtest.SeedTransaction(t, conn, "u5", enums.PaymentGatewayPayU, enums.TransactionStatusSuccess, sampleItems())
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordSettlementFailure(ctx, exhausted.ID, "boom"))
	}
	settled := dbtest.SeedTransaction(t, conn, "u6", enums.PaymentGatewayRazorpay, enums.TransactionStatusSuccess, sampleItems())
	settledID := settled.ID
	require.NoError(t, conn.Create(&models.Order{
		OrderCode:         "ORD-20261017-AAAAAA",
		UserID:            "u6",
		TransactionID:     &settledID,
		Items:             settled.Items,
		Currency:          enums.CurrencyINR,
		PaymentMethod:     enums.PaymentMethodOnlineGatewayA,
		PaymentStatus:     enums.PaymentStatusPaid,
		FulfillmentStatus: enums.FulfillmentStatusProcessing,
		ShippingAddress:   dbtest.SampleAddress(),
	}).Error)

	pending, err := svc.ListStalePending(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stale.ID, pending[0].ID)

	rows, err := svc.ListUnsettledSuccess(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, unsettled.ID, rows[0].ID)

	var reloaded models.Transaction
	require.NoError(t, conn.First(&reloaded, "id = ?", exhausted.ID).Error)
	assert.Equal(t, 3, reloaded.SettlementAttempts)
	require.NotNil(t, reloaded.LastSettlementError)
	assert.Equal(t, "boom", *reloaded.LastSettlementError)
}
