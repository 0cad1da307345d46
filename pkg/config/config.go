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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	Invites      InviteConfig
	Tokens       TokenConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	if err := cfg.CORS.validate(cfg.App); err != nil {
		return nil, err
	}
	if err := cfg.JWT.validate(); err != nil {
		return nil, err
	}
	if _, err := time.LoadLocation(cfg.App.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvTimezone, cfg.App.DefaultTimezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string `envconfig:"BOOST_APP_ENV" required:"true"`
	Port            string `envconfig:"BOOST_APP_PORT" required:"true"`
	LogLevel        string `envconfig:"BOOST_LOG_LEVEL" default:"info"`
	LogWarnStack    bool   `envconfig:"BOOST_LOG_WARN_STACK" default:"false"`
	LogFormat       string `envconfig:"BOOST_LOG_FORMAT" default:"json"`
	PublicBaseURL   string `envconfig:"BOOST_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	DefaultTimezone string `envconfig:"BOOST_DEFAULT_TIMEZONE" default:"UTC"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOST_DB_DSN"`
	Driver string `envconfig:"BOOST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOST_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOST_DB_USER"`
	LegacyPassword string `envconfig:"BOOST_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOST_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BOOST_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOST_REDIS_ADDR"`
	Password     string        `envconfig:"BOOST_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOST_REDIS_WRITE_TIMEOUT" default:"5s"`
	Namespace    string        `envconfig:"BOOST_REDIS_NAMESPACE" default:"boost"`
}

// JWTConfig configures verification of identity tokens and the refreshed
// tokens minted after a role change.
// Mode "hmac" checks HS256 tokens against Secret; "jwks" checks RS256 tokens
// from an external identity provider (Firebase publishes its keys at
// JWKSURL and sets Audience to the project id).
type JWTConfig struct {
	Mode              string        `envconfig:"BOOST_JWT_MODE" default:"hmac"`
	Secret            string        `envconfig:"BOOST_JWT_SECRET"`
	Issuer            string        `envconfig:"BOOST_JWT_ISSUER" required:"true"`
	Audience          string        `envconfig:"BOOST_JWT_AUDIENCE"`
	JWKSURL           string        `envconfig:"BOOST_JWT_JWKS_URL"`
	JWKSRefresh       time.Duration `envconfig:"BOOST_JWT_JWKS_REFRESH" default:"1h"`
	ExpirationMinutes int           `envconfig:"BOOST_JWT_EXPIRATION_MINUTES" default:"60"`
	BindingCacheTTL   time.Duration `envconfig:"BOOST_ROLE_BINDING_CACHE_TTL" default:"30s"`
}

// JWT verification modes.
const (
	JWTModeHMAC = "hmac"
	JWTModeJWKS = "jwks"
)

// CanMint reports whether refreshed tokens can be signed locally.
func (c JWTConfig) CanMint() bool {
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	return (mode == "" || mode == JWTModeHMAC) && c.Secret != ""
}

func (c JWTConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", JWTModeHMAC:
		if c.Secret == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvJWTSecret, EnvJWTMode, JWTModeHMAC)
		}
	case JWTModeJWKS:
		if c.JWKSURL == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvJWTJWKSURL, EnvJWTMode, JWTModeJWKS)
		}
		if c.Audience == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvJWTAudience, EnvJWTMode, JWTModeJWKS)
		}
	default:
		return fmt.Errorf("%s must be %s or %s, got %q", EnvJWTMode, JWTModeHMAC, JWTModeJWKS, c.Mode)
	}
	return nil
}

type CORSConfig struct {
	Origins []string `envconfig:"BOOST_CORS_ORIGINS"`
}

// AllowedOrigins falls back to the local web client outside production.
func (c CORSConfig) AllowedOrigins() []string {
	out := make([]string, 0, len(c.Origins))
	for _, origin := range c.Origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

func (c CORSConfig) validate(app AppConfig) error {
	if !app.IsProd() {
		return nil
	}
	for _, origin := range c.Origins {
		if strings.TrimSpace(origin) != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be set in production", EnvCORSOrigins)
}

type RateLimitConfig struct {
	Window         time.Duration `envconfig:"BOOST_RATE_LIMIT_WINDOW" default:"1m"`
	DefaultLimit   int           `envconfig:"BOOST_RATE_LIMIT_DEFAULT" default:"60"`
	RedeemLimit    int           `envconfig:"BOOST_RATE_LIMIT_REDEEM" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"BOOST_IDEMPOTENCY_TTL" default:"24h"`
}

type InviteConfig struct {
	TTL time.Duration `envconfig:"BOOST_INVITE_TTL" default:"168h"`
}

type TokenConfig struct {
	DefaultExpiresDays int `envconfig:"BOOST_TOKEN_DEFAULT_EXPIRES_DAYS" default:"30"`
	QRSize             int `envconfig:"BOOST_TOKEN_QR_SIZE" default:"256"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOOST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOOST_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BOOST_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BOOST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RedemptionTopic string `envconfig:"BOOST_PUBSUB_REDEMPTION_TOPIC" default:"boost-redemption-events"`
	MerchantTopic   string `envconfig:"BOOST_PUBSUB_MERCHANT_TOPIC" default:"boost-merchant-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"BOOST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"BOOST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"BOOST_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"BOOST_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BOOST_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"BOOST_CRON_LOCK_TTL" default:"4m"`
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
