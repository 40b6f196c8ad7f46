package config

const (
	EnvPrefix = "LEDGERLY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "LEDGERLY_APP_ENV"
	EnvPort     = "LEDGERLY_APP_PORT"
	EnvLogLevel = "LEDGERLY_LOG_LEVEL"

	EnvDBDSN  = "LEDGERLY_DB_DSN"
	EnvDBHost = "LEDGERLY_DB_HOST"
	EnvDBUser = "LEDGERLY_DB_USER"
	EnvDBName = "LEDGERLY_DB_NAME"

	EnvRedisURL = "LEDGERLY_REDIS_URL"

	EnvJWTSecret = "LEDGERLY_JWT_SECRET"
	EnvJWTIssuer = "LEDGERLY_JWT_ISSUER"

	EnvGCPProjectID      = "LEDGERLY_GCP_PROJECT_ID"
	EnvGCSBucket         = "LEDGERLY_GCS_BUCKET_NAME"
	EnvGCSDownloadExpiry = "LEDGERLY_GCS_DOWNLOAD_URL_EXPIRY"

	EnvPubSubAgreementTopic = "LEDGERLY_PUBSUB_AGREEMENT_TOPIC"
	EnvPubSubAssetsSub      = "LEDGERLY_PUBSUB_ASSETS_SUBSCRIPTION"

	EnvPublicAppURL        = "LEDGERLY_PUBLIC_APP_URL"
	EnvSigningLinkTTL      = "LEDGERLY_SIGNING_LINK_TTL"
	EnvAgreementEditWindow = "LEDGERLY_AGREEMENT_EDIT_WINDOW"
)

// legacyDBEnvVars are required when no DSN is supplied.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
