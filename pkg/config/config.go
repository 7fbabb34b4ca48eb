package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	Features FeatureFlagsConfig
	Eventing EventingConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	SMTP     SMTPConfig
	Chat     ChatConfig
	Sweep    SweepConfig
	Outbox   OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FURIMA_APP_ENV" required:"true"`
	Port         string `envconfig:"FURIMA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FURIMA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FURIMA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FURIMA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FURIMA_DB_DSN"`
	Driver string `envconfig:"FURIMA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FURIMA_DB_HOST"`
	LegacyPort     int    `envconfig:"FURIMA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FURIMA_DB_USER"`
	LegacyPassword string `envconfig:"FURIMA_DB_PASSWORD"`
	LegacyName     string `envconfig:"FURIMA_DB_NAME"`
	LegacySSLMode  string `envconfig:"FURIMA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FURIMA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FURIMA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FURIMA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FURIMA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FURIMA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FURIMA_REDIS_ADDR"`
	Password     string        `envconfig:"FURIMA_REDIS_PASSWORD"`
	DB           int           `envconfig:"FURIMA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FURIMA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FURIMA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FURIMA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FURIMA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FURIMA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FURIMA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FURIMA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FURIMA_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FURIMA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FURIMA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FURIMA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FURIMA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FURIMA_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FURIMA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FURIMA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FURIMA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FURIMA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FURIMA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FURIMA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"FURIMA_PUBSUB_EVENTS_TOPIC" default:"furima-trade-events"`
	EventsSubscription string `envconfig:"FURIMA_PUBSUB_EVENTS_SUBSCRIPTION" required:"true"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"FURIMA_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"FURIMA_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"FURIMA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	SuccessURL     string        `envconfig:"FURIMA_CHECKOUT_SUCCESS_URL" default:"http://localhost:8080/checkout/success"`
	CancelURL      string        `envconfig:"FURIMA_CHECKOUT_CANCEL_URL" default:"http://localhost:8080/checkout/cancel"`
	SessionTimeout time.Duration `envconfig:"FURIMA_CHECKOUT_SESSION_TIMEOUT" default:"30s"`
}

type SMTPConfig struct {
	Host        string `envconfig:"FURIMA_SMTP_HOST"`
	Port        int    `envconfig:"FURIMA_SMTP_PORT" default:"587"`
	Username    string `envconfig:"FURIMA_SMTP_USERNAME"`
	Password    string `envconfig:"FURIMA_SMTP_PASSWORD"`
	DefaultFrom string `envconfig:"FURIMA_SMTP_FROM_EMAIL" default:"noreply@furima.example"`
}

type ChatConfig struct {
	DraftTTL time.Duration `envconfig:"FURIMA_CHAT_DRAFT_TTL" default:"168h"`
}

type SweepConfig struct {
	Interval         time.Duration `envconfig:"FURIMA_SWEEP_INTERVAL" default:"1h"`
	ReservationTTL   time.Duration `envconfig:"FURIMA_SWEEP_RESERVATION_TTL" default:"24h"`
	LockTTL          time.Duration `envconfig:"FURIMA_SWEEP_LOCK_TTL" default:"5m"`
	ReleaseBatchSize int           `envconfig:"FURIMA_SWEEP_RELEASE_BATCH_SIZE" default:"100"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FURIMA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FURIMA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FURIMA_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
