package config

// EnvPrefix is empty because every key is fully qualified in its struct tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "PGWALLAH_APP_ENV"
	EnvPort   = "PGWALLAH_APP_PORT"

	EnvDBDSN  = "PGWALLAH_DB_DSN"
	EnvDBHost = "PGWALLAH_DB_HOST"
	EnvDBUser = "PGWALLAH_DB_USER"
	EnvDBName = "PGWALLAH_DB_NAME"

	EnvRedisURL = "PGWALLAH_REDIS_URL"

	EnvGCPProjectID = "PGWALLAH_GCP_PROJECT_ID"
	EnvGCSBucket    = "PGWALLAH_GCS_BUCKET_NAME"

	EnvPubSubPaymentsTopic      = "PGWALLAH_PUBSUB_PAYMENTS_TOPIC"
	EnvPubSubSubscriptionsTopic = "PGWALLAH_PUBSUB_SUBSCRIPTIONS_TOPIC"
	EnvPubSubReceiptsSub        = "PGWALLAH_PUBSUB_RECEIPTS_SUBSCRIPTION"
	EnvPubSubAnalyticsSub       = "PGWALLAH_PUBSUB_ANALYTICS_SUBSCRIPTION"

	EnvGatewaySignatureBypass = "PGWALLAH_GATEWAY_SIGNATURE_BYPASS"
	EnvPaymentMinAmount       = "PGWALLAH_PAYMENT_MIN_AMOUNT"
	EnvPaymentMaxAmount       = "PGWALLAH_PAYMENT_MAX_AMOUNT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
