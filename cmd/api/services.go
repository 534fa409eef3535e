package main

import (
	"context"
	"fmt"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/cart"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/checkout"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/cod"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/payu"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/razorpay"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/inventory"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/products"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/settlement"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/webhooks"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/metrics"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/outbox"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/redis"
)

const razorpayWebhookScope = "razorpay-webhook"

type apiServices struct {
	checkout *checkout.Service
	orders   *orders.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, settlementMetrics *metrics.SettlementMetrics) (*apiServices, error) {
	gormDB := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)
	txRepo := transactions.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	adjuster := inventory.NewAdjuster()
	policy := pricing.PolicyFromConfig(cfg.Store)

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
		Orders:       orderRepo,
		Carts:        cartRepo,
		Inventory:    adjuster,
		Pricing:      policy,
		TxRunner:     dbClient,
		Outbox:       emitter,
		Metrics:      settlementMetrics,
		Logger:       logg,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repository:   orderRepo,
		TxRunner:     dbClient,
		Outbox:       emitter,
		Inventory:    adjuster,
		Transactions: txnService,
		Logger:       logg,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Idempotency.WebhookTTL(), razorpayWebhookScope)
	if err != nil {
		return nil, fmt.Errorf("webhook guard: %w", err)
	}

	params := checkout.ServiceParams{
		Carts:        cartRepo,
		Products:     products.NewRepository(gormDB),
		Transactions: txnService,
		Settlement:   settler,
		Pricing:      policy,
		PayUConfig:   cfg.PayU,
		COD:          cod.NewAdapter(),
		Guard:        guard,
		Metrics:      settlementMetrics,
		Logger:       logg,
	}
	attachGateways(&params, cfg, logg)

	checkoutService, err := checkout.NewService(params)
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	return &apiServices{checkout: checkoutService, orders: orderService}, nil
}

// attachGateways sets the online gateways whose credentials are configured.
// Paths through an unconfigured gateway are rejected by checkout.
func attachGateways(params *checkout.ServiceParams, cfg *config.Config, logg *logger.Logger) {
	ctx := context.Background()

	if registrar, err := razorpay.NewOrderRegistrar(cfg.Razorpay); err != nil {
		logg.Warn(ctx, "razorpay checkout disabled: "+err.Error())
	} else {
		params.Registrar = registrar
	}
	if confirmation, err := razorpay.NewConfirmationAdapter(cfg.Razorpay.KeySecret); err == nil {
		params.Confirmation = confirmation
	}
	if webhook, err := razorpay.NewWebhookAdapter(cfg.Razorpay.WebhookSecret); err != nil {
		logg.Warn(ctx, "razorpay webhooks disabled: "+err.Error())
	} else {
		params.Webhook = webhook
	}
	if adapter, err := payu.NewAdapter(cfg.PayU.MerchantKey, cfg.PayU.Salt); err != nil {
		logg.Warn(ctx, "payu checkout disabled: "+err.Error())
	} else {
		params.PayU = adapter
	}
}
