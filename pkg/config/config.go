package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Store        StoreConfig
	Razorpay     RazorpayConfig
	PayU         PayUConfig
	Idempotency  IdempotencyConfig
	Reconcile    ReconcileConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SETTLEMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"SETTLEMENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SETTLEMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SETTLEMENT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"SETTLEMENT_CORS_ALLOWED_ORIGINS"`
	ReadTimeout     time.Duration `envconfig:"SETTLEMENT_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SETTLEMENT_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SETTLEMENT_HTTP_SHUTDOWN_TIMEOUT" default:"20s"`
}

type ServiceConfig struct {
	Kind string `envconfig:"SETTLEMENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SETTLEMENT_DB_DSN"`
	Driver string `envconfig:"SETTLEMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SETTLEMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"SETTLEMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SETTLEMENT_DB_USER"`
	LegacyPassword string `envconfig:"SETTLEMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SETTLEMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SETTLEMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLEMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLEMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SETTLEMENT_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLEMENT_REDIS_URL"`
	Address      string        `envconfig:"SETTLEMENT_REDIS_ADDR"`
	Password     string        `envconfig:"SETTLEMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SETTLEMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SETTLEMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLEMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLEMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SETTLEMENT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SETTLEMENT_AUTO_MIGRATE" default:"false"`
}

// StoreConfig holds the store-wide pricing settings every settlement is recomputed from.
type StoreConfig struct {
	Currency               string  `envconfig:"SETTLEMENT_STORE_CURRENCY" default:"INR"`
	TaxPercent             float64 `envconfig:"SETTLEMENT_STORE_TAX_PERCENT" default:"18"`
	ShippingFlatFeeMinor   int64   `envconfig:"SETTLEMENT_STORE_SHIPPING_FLAT_FEE_MINOR" default:"5000"`
	FreeShippingOverMinor  int64   `envconfig:"SETTLEMENT_STORE_FREE_SHIPPING_OVER_MINOR" default:"0"`
	DiscountCeilingPercent float64 `envconfig:"SETTLEMENT_STORE_DISCOUNT_CEILING_PERCENT" default:"15"`
}

func (s StoreConfig) validate() error {
	if s.TaxPercent < 0 {
		return fmt.Errorf("%s must be non-negative", EnvStoreTaxPercent)
	}
	if s.DiscountCeilingPercent < 0 || s.DiscountCeilingPercent > 100 {
		return fmt.Errorf("%s must be within [0,100]", EnvStoreDiscountCeiling)
	}
	if s.ShippingFlatFeeMinor < 0 || s.FreeShippingOverMinor < 0 {
		return fmt.Errorf("shipping amounts must be non-negative")
	}
	return nil
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"SETTLEMENT_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"SETTLEMENT_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"SETTLEMENT_RAZORPAY_WEBHOOK_SECRET"`
}

type PayUConfig struct {
	MerchantKey string `envconfig:"SETTLEMENT_PAYU_MERCHANT_KEY"`
	Salt        string `envconfig:"SETTLEMENT_PAYU_SALT"`
	BaseURL     string `envconfig:"SETTLEMENT_PAYU_BASE_URL" default:"https://test.payu.in/_payment"`
	SuccessURL  string `envconfig:"SETTLEMENT_PAYU_SUCCESS_URL"`
	FailureURL  string `envconfig:"SETTLEMENT_PAYU_FAILURE_URL"`
}

type IdempotencyConfig struct {
	WebhookTTLHours  int `envconfig:"SETTLEMENT_WEBHOOK_IDEMPOTENCY_TTL_HOURS" default:"720"`
	RequestTTLHours  int `envconfig:"SETTLEMENT_REQUEST_IDEMPOTENCY_TTL_HOURS" default:"24"`
	CheckoutTTLHours int `envconfig:"SETTLEMENT_CHECKOUT_IDEMPOTENCY_TTL_HOURS" default:"168"`
	InFlightSeconds  int `envconfig:"SETTLEMENT_IDEMPOTENCY_INFLIGHT_SECONDS" default:"60"`
}

// WebhookTTL returns how long processed webhook deliveries are remembered.
func (i IdempotencyConfig) WebhookTTL() time.Duration {
	return hours(i.WebhookTTLHours)
}

func (i IdempotencyConfig) RequestTTL() time.Duration  { return hours(i.RequestTTLHours) }
func (i IdempotencyConfig) CheckoutTTL() time.Duration { return hours(i.CheckoutTTLHours) }

func (i IdempotencyConfig) InFlightTTL() time.Duration {
	if i.InFlightSeconds <= 0 {
		return 0
	}
	return time.Duration(i.InFlightSeconds) * time.Second
}

func hours(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Hour
}

type ReconcileConfig struct {
	PendingTTLMinutes     int `envconfig:"SETTLEMENT_PENDING_TTL_MINUTES" default:"60"`
	MaxSettlementAttempts int `envconfig:"SETTLEMENT_MAX_SETTLEMENT_ATTEMPTS" default:"5"`
	BatchSize             int `envconfig:"SETTLEMENT_RECONCILE_BATCH_SIZE" default:"100"`
}

// PendingTTL is how long a transaction may stay pending before it is cancelled.
func (r ReconcileConfig) PendingTTL() time.Duration {
	if r.PendingTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(r.PendingTTLMinutes) * time.Minute
}

type GCPConfig struct {
	ProjectID string `envconfig:"SETTLEMENT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"SETTLEMENT_PUBSUB_SETTLEMENT_TOPIC" default:"settlement-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SETTLEMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:settlement.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
