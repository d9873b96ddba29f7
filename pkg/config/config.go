package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Eventing EventingConfig
	GCP      GCPConfig
	GCS      GCSConfig
	PubSub   PubSubConfig
	BigQuery BigQueryConfig
	Outbox   OutboxConfig
	Gateway  GatewayConfig
	Razorpay RazorpayConfig
	Square   SquareConfig
	Payments PaymentsConfig
	Receipts ReceiptsConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Gateway.SignatureBypass && c.App.IsProd() {
		return errors.New("gateway signature bypass cannot be enabled in production")
	}
	if _, err := c.Payments.Limits(); err != nil {
		return err
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"PGWALLAH_APP_ENV" required:"true"`
	Port         string `envconfig:"PGWALLAH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PGWALLAH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PGWALLAH_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow-list for browser callers of /verify.
	CORSOrigins []string `envconfig:"PGWALLAH_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"PGWALLAH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN         string `envconfig:"PGWALLAH_DB_DSN"`
	AutoMigrate bool   `envconfig:"PGWALLAH_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"PGWALLAH_DB_HOST"`
	LegacyPort     int    `envconfig:"PGWALLAH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PGWALLAH_DB_USER"`
	LegacyPassword string `envconfig:"PGWALLAH_DB_PASSWORD"`
	LegacyName     string `envconfig:"PGWALLAH_DB_NAME"`
	LegacySSLMode  string `envconfig:"PGWALLAH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PGWALLAH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PGWALLAH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PGWALLAH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PGWALLAH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PGWALLAH_REDIS_URL"`
	Address      string        `envconfig:"PGWALLAH_REDIS_ADDR"`
	Password     string        `envconfig:"PGWALLAH_REDIS_PASSWORD"`
	DB           int           `envconfig:"PGWALLAH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PGWALLAH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PGWALLAH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PGWALLAH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PGWALLAH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PGWALLAH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"PGWALLAH_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL  time.Duration `envconfig:"PGWALLAH_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PGWALLAH_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PGWALLAH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PGWALLAH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"PGWALLAH_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"PGWALLAH_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type PubSubConfig struct {
	PaymentsTopic         string `envconfig:"PGWALLAH_PUBSUB_PAYMENTS_TOPIC" required:"true"`
	SubscriptionsTopic    string `envconfig:"PGWALLAH_PUBSUB_SUBSCRIPTIONS_TOPIC" required:"true"`
	ReceiptsSubscription  string `envconfig:"PGWALLAH_PUBSUB_RECEIPTS_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription string `envconfig:"PGWALLAH_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"PGWALLAH_BIGQUERY_DATASET" default:"pgwallah"`
	PaymentEventsTable string `envconfig:"PGWALLAH_BIGQUERY_PAYMENT_EVENTS_TABLE" default:"payment_events"`
	InsertBatchSize    int    `envconfig:"PGWALLAH_BIGQUERY_BATCH_SIZE" default:"1"`
	InsertMaxAttempts  int    `envconfig:"PGWALLAH_BIGQUERY_MAX_ATTEMPTS" default:"3"`
	CreateTables       bool   `envconfig:"PGWALLAH_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PGWALLAH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PGWALLAH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PGWALLAH_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PGWALLAH_OUTBOX_RETENTION_DAYS" default:"30"`
}

type GatewayConfig struct {
	Default         string        `envconfig:"PGWALLAH_GATEWAY_DEFAULT" default:"razorpay"`
	Timeout         time.Duration `envconfig:"PGWALLAH_GATEWAY_TIMEOUT" default:"15s"`
	SignatureBypass bool          `envconfig:"PGWALLAH_GATEWAY_SIGNATURE_BYPASS" default:"false"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"PGWALLAH_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"PGWALLAH_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"PGWALLAH_RAZORPAY_WEBHOOK_SECRET"`
	UPIVPA        string `envconfig:"PGWALLAH_UPI_VPA" default:"pgwallah@upi"`
	PayeeName     string `envconfig:"PGWALLAH_UPI_PAYEE_NAME" default:"PGwallah"`
}

// Enabled reports whether enough credentials are present to build the adapter.
func (r RazorpayConfig) Enabled() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

type SquareConfig struct {
	AccessToken   string `envconfig:"PGWALLAH_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"PGWALLAH_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"PGWALLAH_SQUARE_LOCATION_ID"`
	Env           string `envconfig:"PGWALLAH_SQUARE_ENV" default:"sandbox"`
	CheckoutURL   string `envconfig:"PGWALLAH_SQUARE_CHECKOUT_URL" default:"https://checkout.pgwallah.in/square"`
	// WebhookURL is the notification URL registered with Square; it is part of the signed payload.
	WebhookURL string `envconfig:"PGWALLAH_SQUARE_WEBHOOK_URL"`
}

// Enabled reports whether enough credentials are present to build the adapter.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != "" && strings.TrimSpace(s.LocationID) != ""
}

type PaymentsConfig struct {
	DefaultCurrency string `envconfig:"PGWALLAH_DEFAULT_CURRENCY" default:"INR"`
	MinAmount       string `envconfig:"PGWALLAH_PAYMENT_MIN_AMOUNT" default:"1"`
	MaxAmount       string `envconfig:"PGWALLAH_PAYMENT_MAX_AMOUNT" default:"100000"`
}

// AmountLimits bounds a single charge in major units.
type AmountLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Limits parses the configured amount bounds.
func (p PaymentsConfig) Limits() (AmountLimits, error) {
	minAmount, err := decimal.NewFromString(strings.TrimSpace(p.MinAmount))
	if err != nil {
		return AmountLimits{}, fmt.Errorf("%s: %w", EnvPaymentMinAmount, err)
	}
	maxAmount, err := decimal.NewFromString(strings.TrimSpace(p.MaxAmount))
	if err != nil {
		return AmountLimits{}, fmt.Errorf("%s: %w", EnvPaymentMaxAmount, err)
	}
	if minAmount.LessThanOrEqual(decimal.Zero) || maxAmount.LessThan(minAmount) {
		return AmountLimits{}, fmt.Errorf("invalid payment amount bounds %s..%s", minAmount, maxAmount)
	}
	return AmountLimits{Min: minAmount, Max: maxAmount}, nil
}

type ReceiptsConfig struct {
	Prefix         string        `envconfig:"PGWALLAH_RECEIPTS_PREFIX" default:"receipts"`
	BackfillBatch  int           `envconfig:"PGWALLAH_RECEIPTS_BACKFILL_BATCH" default:"100"`
	MaxAttempts    int           `envconfig:"PGWALLAH_RECEIPTS_MAX_ATTEMPTS" default:"5"`
	BackfillMinAge time.Duration `envconfig:"PGWALLAH_RECEIPTS_BACKFILL_MIN_AGE" default:"10m"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"PGWALLAH_CRON_INTERVAL" default:"15m"`
	JobTimeout time.Duration `envconfig:"PGWALLAH_CRON_JOB_TIMEOUT" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
