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
	FeatureFlags FeatureFlagsConfig
	Reservation  ReservationConfig
	Cart         CartConfig
	Loyalty      LoyaltyConfig
	Handoff      HandoffConfig
	Telegram     TelegramConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Loyalty.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VITRINE_APP_ENV" required:"true"`
	Port         string `envconfig:"VITRINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VITRINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VITRINE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"VITRINE_LOG_FORMAT" default:"json"`
	// CORSOrigins lists storefront origins allowed to call the API.
	CORSOrigins []string `envconfig:"VITRINE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VITRINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VITRINE_DB_DSN"`
	Driver string `envconfig:"VITRINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VITRINE_DB_HOST"`
	Port     int    `envconfig:"VITRINE_DB_PORT" default:"5432"`
	User     string `envconfig:"VITRINE_DB_USER"`
	Password string `envconfig:"VITRINE_DB_PASSWORD"`
	Name     string `envconfig:"VITRINE_DB_NAME"`
	SSLMode  string `envconfig:"VITRINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VITRINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VITRINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VITRINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VITRINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"VITRINE_DB_SLOW_QUERY" default:"250ms"`
	// TxRetries bounds reruns of a transaction aborted by a serialization
	// failure or deadlock.
	TxRetries int `envconfig:"VITRINE_DB_TX_RETRIES" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VITRINE_REDIS_URL"`
	Address      string        `envconfig:"VITRINE_REDIS_ADDR"`
	Password     string        `envconfig:"VITRINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VITRINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VITRINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VITRINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VITRINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VITRINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VITRINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens minted by the external identity provider.
// The API only verifies them.
type JWTConfig struct {
	Secret string `envconfig:"VITRINE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"VITRINE_JWT_ISSUER" required:"true"`
	// Audience is checked only when set.
	Audience string `envconfig:"VITRINE_JWT_AUDIENCE"`
	// Leeway absorbs clock skew against the identity provider.
	Leeway time.Duration `envconfig:"VITRINE_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VITRINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VITRINE_AUTO_MIGRATE" default:"false"`
}

type ReservationConfig struct {
	TTL time.Duration `envconfig:"VITRINE_RESERVATION_TTL" default:"15m"`
	// DemoProductIDs are seed catalog entries that may be reserved without a
	// backing product row outside production.
	DemoProductIDs []string      `envconfig:"VITRINE_RESERVATION_DEMO_PRODUCT_IDS"`
	SweepGrace     time.Duration `envconfig:"VITRINE_RESERVATION_SWEEP_GRACE" default:"1h"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"VITRINE_CART_TTL" default:"168h"`
}

type LoyaltyConfig struct {
	SilverThresholdCents int64 `envconfig:"VITRINE_LOYALTY_SILVER_THRESHOLD_CENTS" default:"25000"`
	GoldThresholdCents   int64 `envconfig:"VITRINE_LOYALTY_GOLD_THRESHOLD_CENTS" default:"60000"`
	PointsPerUnit        int64 `envconfig:"VITRINE_LOYALTY_POINTS_PER_UNIT" default:"1"`
}

func (l LoyaltyConfig) validate() error {
	if l.SilverThresholdCents <= 0 || l.GoldThresholdCents <= l.SilverThresholdCents {
		return fmt.Errorf("%s must be positive and below %s", EnvLoyaltySilverThreshold, EnvLoyaltyGoldThreshold)
	}
	if l.PointsPerUnit < 0 {
		return fmt.Errorf("%s must not be negative", EnvLoyaltyPointsPerUnit)
	}
	return nil
}

type HandoffConfig struct {
	WhatsAppPhone    string `envconfig:"VITRINE_HANDOFF_WHATSAPP_PHONE"`
	TelegramUsername string `envconfig:"VITRINE_HANDOFF_TELEGRAM_USERNAME"`
}

type TelegramConfig struct {
	BotToken   string        `envconfig:"VITRINE_TELEGRAM_BOT_TOKEN"`
	ChatID     string        `envconfig:"VITRINE_TELEGRAM_CHAT_ID"`
	BaseURL    string        `envconfig:"VITRINE_TELEGRAM_BASE_URL" default:"https://api.telegram.org"`
	Timeout    time.Duration `envconfig:"VITRINE_TELEGRAM_TIMEOUT" default:"10s"`
	MaxRetries uint64        `envconfig:"VITRINE_TELEGRAM_MAX_RETRIES" default:"3"`
	// RatePerMinute paces outgoing messages; 0 disables pacing.
	RatePerMinute int `envconfig:"VITRINE_TELEGRAM_RATE_PER_MINUTE" default:"20"`
	RateBurst     int `envconfig:"VITRINE_TELEGRAM_RATE_BURST" default:"3"`
}

// Enabled reports whether order notifications can be delivered.
func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.BotToken) != "" && strings.TrimSpace(t.ChatID) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VITRINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VITRINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VITRINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"VITRINE_CRON_INTERVAL" default:"5m"`
	OutboxRetention time.Duration `envconfig:"VITRINE_CRON_OUTBOX_RETENTION" default:"720h"`
	JobTimeout      time.Duration `envconfig:"VITRINE_CRON_JOB_TIMEOUT" default:"2m"`

	// OutboxPruneBatch caps rows removed per DELETE.
	OutboxPruneBatch int `envconfig:"VITRINE_CRON_OUTBOX_PRUNE_BATCH" default:"500"`

	// Jobs limits the worker to the named jobs; empty runs all of them.
	Jobs []string `envconfig:"VITRINE_CRON_JOBS"`
}

// RateLimitConfig throttles stock-touching writes per guest session. A zero
// limit disables the policy.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"VITRINE_RATE_LIMIT_WINDOW" default:"1m"`
	ReserveLimit  int           `envconfig:"VITRINE_RATE_LIMIT_RESERVE" default:"120"`
	CheckoutLimit int           `envconfig:"VITRINE_RATE_LIMIT_CHECKOUT" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:vitrine.db?cache=shared"
		return nil
	}

	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	missing := []string{}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
