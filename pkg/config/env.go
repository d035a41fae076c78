package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "VITRINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "VITRINE_APP_ENV"
	EnvPort        = "VITRINE_APP_PORT"
	EnvLogLevel    = "VITRINE_LOG_LEVEL"
	EnvServiceKind = "VITRINE_SERVICE_KIND"

	EnvDBDSN  = "VITRINE_DB_DSN"
	EnvDBHost = "VITRINE_DB_HOST"
	EnvDBUser = "VITRINE_DB_USER"
	EnvDBName = "VITRINE_DB_NAME"

	EnvRedisURL = "VITRINE_REDIS_URL"

	EnvJWTSecret = "VITRINE_JWT_SECRET"
	EnvJWTIssuer = "VITRINE_JWT_ISSUER"

	EnvUseSQLite = "VITRINE_USE_SQLITE"

	EnvReservationTTL     = "VITRINE_RESERVATION_TTL"
	EnvReservationDemoIDs = "VITRINE_RESERVATION_DEMO_PRODUCT_IDS"

	EnvLoyaltySilverThreshold = "VITRINE_LOYALTY_SILVER_THRESHOLD_CENTS"
	EnvLoyaltyGoldThreshold   = "VITRINE_LOYALTY_GOLD_THRESHOLD_CENTS"
	EnvLoyaltyPointsPerUnit   = "VITRINE_LOYALTY_POINTS_PER_UNIT"

	EnvTelegramBotToken = "VITRINE_TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "VITRINE_TELEGRAM_CHAT_ID"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
