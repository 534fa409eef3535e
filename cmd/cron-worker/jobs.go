package main

import (
	"fmt"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/cart"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/cron"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/inventory"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/settlement"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/metrics"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox"
)

// buildJobs wires the expiry sweep, the settlement reconciler and outbox retention.
func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, settlementMetrics *metrics.SettlementMetrics) ([]cron.Job, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)
	txRepo := transactions.NewRepository(gormDB)

	txnService, err := transactions.NewService(transactions.ServiceParams{
		Repository: txRepo,
		TxRunner:   dbClient,
		Outbox:     emitter,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("transactions service: %w", err)
	}

	settler, err := settlement.NewService(settlement.ServiceParams{
		Transactions: txRepo,
		Orders:       orders.NewRepository(gormDB),
		Carts:        cart.NewRepository(gormDB),
		Inventory:    inventory.NewAdjuster(),
		Pricing:      pricing.PolicyFromConfig(cfg.Store),
		TxRunner:     dbClient,
		Outbox:       emitter,
		Metrics:      settlementMetrics,
		Logger:       logg,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	expiry, err := cron.NewPendingExpiryJob(cron.PendingExpiryJobParams{
		Logger:       logg,
		Reader:       txnService,
		Transactions: txnService,
		TTL:          cfg.Reconcile.PendingTTL(),
		BatchSize:    cfg.Reconcile.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("pending expiry job: %w", err)
	}

	reconcile, err := cron.NewSettlementReconcileJob(cron.SettlementReconcileJobParams{
		Logger:      logg,
		Reader:      txnService,
		Settler:     settler,
		MaxAttempts: cfg.Reconcile.MaxSettlementAttempts,
		BatchSize:   cfg.Reconcile.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement reconcile job: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return []cron.Job{expiry, reconcile, retention}, nil
}
