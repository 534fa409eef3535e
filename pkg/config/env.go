package config

const (
	EnvPrefix = "SETTLEMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "SETTLEMENT_APP_ENV"
	EnvPort     = "SETTLEMENT_APP_PORT"
	EnvLogLevel = "SETTLEMENT_LOG_LEVEL"

	EnvDBDSN  = "SETTLEMENT_DB_DSN"
	EnvDBHost = "SETTLEMENT_DB_HOST"
	EnvDBUser = "SETTLEMENT_DB_USER"
	EnvDBName = "SETTLEMENT_DB_NAME"

	EnvRedisURL  = "SETTLEMENT_REDIS_URL"
	EnvUseSQLite = "SETTLEMENT_USE_SQLITE"

	EnvStoreTaxPercent      = "SETTLEMENT_STORE_TAX_PERCENT"
	EnvStoreDiscountCeiling = "SETTLEMENT_STORE_DISCOUNT_CEILING_PERCENT"
	EnvStoreShippingFee     = "SETTLEMENT_STORE_SHIPPING_FLAT_FEE_MINOR"

	EnvRazorpayKeyID         = "SETTLEMENT_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret     = "SETTLEMENT_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookSecret = "SETTLEMENT_RAZORPAY_WEBHOOK_SECRET"
	EnvPayUMerchantKey       = "SETTLEMENT_PAYU_MERCHANT_KEY"
	EnvPayUSalt              = "SETTLEMENT_PAYU_SALT"

	EnvPendingTTLMinutes      = "SETTLEMENT_PENDING_TTL_MINUTES"
	EnvPubSubSettlementTopic  = "SETTLEMENT_PUBSUB_SETTLEMENT_TOPIC"
	EnvGCPProjectID           = "SETTLEMENT_GCP_PROJECT_ID"
	EnvMaxSettlementAttempts  = "SETTLEMENT_MAX_SETTLEMENT_ATTEMPTS"
	EnvWebhookIdempotencyTTLh = "SETTLEMENT_WEBHOOK_IDEMPOTENCY_TTL_HOURS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
