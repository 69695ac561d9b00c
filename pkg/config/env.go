package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so it
// only matters for error messages.
const EnvPrefix = "ECOBUY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

const (
	EnvAppEnv              = "ECOBUY_APP_ENV"
	EnvPort                = "ECOBUY_APP_PORT"
	EnvDBDSN               = "ECOBUY_DB_DSN"
	EnvDBDriver            = "ECOBUY_DB_DRIVER"
	EnvDBHost              = "ECOBUY_DB_HOST"
	EnvDBUser              = "ECOBUY_DB_USER"
	EnvDBName              = "ECOBUY_DB_NAME"
	EnvRedisURL            = "ECOBUY_REDIS_URL"
	EnvRedisAddr           = "ECOBUY_REDIS_ADDR"
	EnvJWTSecret           = "ECOBUY_JWT_SECRET"
	EnvJWTIssuer           = "ECOBUY_JWT_ISSUER"
	EnvJWTExpMins          = "ECOBUY_JWT_EXPIRATION_MINUTES"
	EnvGoogleClientID      = "ECOBUY_GOOGLE_CLIENT_ID"
	EnvAccountServiceURL   = "ECOBUY_ACCOUNT_SERVICE_URL"
	EnvCacheBackend        = "ECOBUY_CACHE_BACKEND"
	EnvCacheDir            = "ECOBUY_CACHE_DIR"
	EnvOffline             = "ECOBUY_OFFLINE"
	EnvResendAPIKey        = "ECOBUY_RESEND_API_KEY"
	EnvRequireVerification = "ECOBUY_REQUIRE_VERIFICATION"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
