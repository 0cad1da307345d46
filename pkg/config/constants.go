package config

const EnvPrefix = "BOOST"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv        = "BOOST_APP_ENV"
	EnvPort          = "BOOST_APP_PORT"
	EnvPublicBaseURL = "BOOST_PUBLIC_BASE_URL"
	EnvTimezone      = "BOOST_DEFAULT_TIMEZONE"

	EnvDBDSN  = "BOOST_DB_DSN"
	EnvDBHost = "BOOST_DB_HOST"
	EnvDBUser = "BOOST_DB_USER"
	EnvDBName = "BOOST_DB_NAME"

	EnvRedisURL = "BOOST_REDIS_URL"

	EnvJWTSecret   = "BOOST_JWT_SECRET"
	EnvJWTIssuer   = "BOOST_JWT_ISSUER"
	EnvJWTExpMins  = "BOOST_JWT_EXPIRATION_MINUTES"
	EnvJWTMode     = "BOOST_JWT_MODE"
	EnvJWTJWKSURL  = "BOOST_JWT_JWKS_URL"
	EnvJWTAudience = "BOOST_JWT_AUDIENCE"

	EnvCORSOrigins = "BOOST_CORS_ORIGINS"

	EnvGCPProjectID          = "BOOST_GCP_PROJECT_ID"
	EnvPubSubRedemptionTopic = "BOOST_PUBSUB_REDEMPTION_TOPIC"
	EnvPubSubMerchantTopic   = "BOOST_PUBSUB_MERCHANT_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
