package config

const EnvPrefix = "FURIMA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "FURIMA_APP_ENV"
	EnvPort       = "FURIMA_APP_PORT"
	EnvDBDSN      = "FURIMA_DB_DSN"
	EnvDBHost     = "FURIMA_DB_HOST"
	EnvDBUser     = "FURIMA_DB_USER"
	EnvDBName     = "FURIMA_DB_NAME"
	EnvRedisURL   = "FURIMA_REDIS_URL"
	EnvJWTSecret  = "FURIMA_JWT_SECRET"
	EnvJWTIssuer  = "FURIMA_JWT_ISSUER"
	EnvJWTExpMins = "FURIMA_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID     = "FURIMA_GCP_PROJECT_ID"
	EnvPubSubEventTopic = "FURIMA_PUBSUB_EVENTS_TOPIC"
	EnvPubSubEventSub   = "FURIMA_PUBSUB_EVENTS_SUBSCRIPTION"

	EnvStripeAPIKey        = "FURIMA_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "FURIMA_STRIPE_WEBHOOK_SECRET"
	EnvCheckoutSuccessURL  = "FURIMA_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL   = "FURIMA_CHECKOUT_CANCEL_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
