package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/ledgerly-backend/pkg/env"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    SigningRateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Sendgrid     SendgridConfig
	Outbox       OutboxConfig
	Signing      SigningConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Signing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabase reads only the database and logging settings. Schema tooling
// runs before the rest of the stack is provisioned.
func LoadDatabase() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	cfg.App.Env = env.Get(EnvAppEnv, AppEnvDev)
	cfg.App.LogLevel = env.Get(EnvLogLevel, "info")
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGERLY_APP_ENV" required:"true"`
	Port         string `envconfig:"LEDGERLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEDGERLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEDGERLY_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"LEDGERLY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEDGERLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEDGERLY_DB_DSN"`
	Driver string `envconfig:"LEDGERLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEDGERLY_DB_HOST"`
	LegacyPort     int    `envconfig:"LEDGERLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEDGERLY_DB_USER"`
	LegacyPassword string `envconfig:"LEDGERLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEDGERLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEDGERLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEDGERLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGERLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGERLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGERLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs queries slower than this at warn. Zero disables.
	SlowQueryThreshold time.Duration `envconfig:"LEDGERLY_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGERLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEDGERLY_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGERLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGERLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGERLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGERLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGERLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGERLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGERLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for owner bearer tokens. Tokens
// are minted by the account service; this backend only verifies them.
type JWTConfig struct {
	Secret            string `envconfig:"LEDGERLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEDGERLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEDGERLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type SigningRateLimitConfig struct {
	Window     time.Duration `envconfig:"LEDGERLY_SIGNING_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit    int           `envconfig:"LEDGERLY_SIGNING_RATE_LIMIT_IP_LIMIT" default:"30"`
	TokenLimit int           `envconfig:"LEDGERLY_SIGNING_RATE_LIMIT_TOKEN_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEDGERLY_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"LEDGERLY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	// HTTPReplayTTL is how long owner POSTs with an Idempotency-Key replay.
	HTTPReplayTTL time.Duration `envconfig:"LEDGERLY_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LEDGERLY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"LEDGERLY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LEDGERLY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"LEDGERLY_GCS_BUCKET_NAME" required:"true"`
	EmulatorHost      string        `envconfig:"LEDGERLY_GCS_EMULATOR_HOST"`
	DownloadURLExpiry time.Duration `envconfig:"LEDGERLY_GCS_DOWNLOAD_URL_EXPIRY" default:"15m"`
	SignerEmail       string        `envconfig:"LEDGERLY_GCS_SIGNER_EMAIL"`
}

type PubSubConfig struct {
	AgreementTopic        string `envconfig:"LEDGERLY_PUBSUB_AGREEMENT_TOPIC" required:"true"`
	AgreementSubscription string `envconfig:"LEDGERLY_PUBSUB_AGREEMENT_SUBSCRIPTION"`
	AssetsSubscription    string `envconfig:"LEDGERLY_PUBSUB_ASSETS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"LEDGERLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"LEDGERLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"LEDGERLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"LEDGERLY_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LEDGERLY_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"LEDGERLY_CRON_LOCK_TTL" default:"10m"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"LEDGERLY_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"LEDGERLY_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"LEDGERLY_SENDGRID_FROM_NAME" default:"Ledgerly"`
}

// SigningConfig controls the agreement signing lifecycle.
type SigningConfig struct {
	PublicAppURL       string        `envconfig:"LEDGERLY_PUBLIC_APP_URL" required:"true"`
	LinkTTL            time.Duration `envconfig:"LEDGERLY_SIGNING_LINK_TTL" default:"48h"`
	EditWindow         time.Duration `envconfig:"LEDGERLY_AGREEMENT_EDIT_WINDOW" default:"48h"`
	DocumentURLTTL     time.Duration `envconfig:"LEDGERLY_SIGNED_DOCUMENT_URL_TTL" default:"168h"`
	MaxSignatureBytes  int           `envconfig:"LEDGERLY_SIGNATURE_MAX_BYTES" default:"2097152"`
	ExpirySweepBatch   int           `envconfig:"LEDGERLY_SIGNING_EXPIRY_SWEEP_BATCH" default:"200"`
	RenderTimeout      time.Duration `envconfig:"LEDGERLY_SIGNING_RENDER_TIMEOUT" default:"30s"`
	NotificationsReply string        `envconfig:"LEDGERLY_SIGNING_REPLY_TO"`
}

func (s SigningConfig) validate() error {
	if s.LinkTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvSigningLinkTTL)
	}
	if s.EditWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvAgreementEditWindow)
	}
	if _, err := url.ParseRequestURI(s.PublicAppURL); err != nil {
		return fmt.Errorf("%s is not a valid url: %w", EnvPublicAppURL, err)
	}
	return nil
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
