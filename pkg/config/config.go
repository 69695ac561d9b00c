package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the account service binaries need.
type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Google        GoogleConfig
	Email         EmailConfig
}

// StorefrontConfig configures the shopper-side session store.
type StorefrontConfig struct {
	App            AppConfig
	AccountService AccountServiceConfig
	Cache          CacheConfig
	Redis          OptionalRedisConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects production setups that would write verification or
// reset codes to the log instead of mailing them.
func (c *Config) validate() error {
	if c.App.IsProd() && c.FeatureFlags.RequireVerification && strings.TrimSpace(c.Email.ResendAPIKey) == "" {
		return fmt.Errorf("%s is required when %s=%s and %s is on", EnvResendAPIKey, EnvAppEnv, AppEnvProd, EnvRequireVerification)
	}
	return nil
}

// LoadStorefront parses the client-side configuration.
func LoadStorefront() (*StorefrontConfig, error) {
	var cfg StorefrontConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"ECOBUY_APP_ENV" default:"dev"`
	Port         string   `envconfig:"ECOBUY_APP_PORT" default:"3000"`
	LogLevel     string   `envconfig:"ECOBUY_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"ECOBUY_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"ECOBUY_CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ECOBUY_DB_DSN"`
	Driver string `envconfig:"ECOBUY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ECOBUY_DB_HOST"`
	Port     int    `envconfig:"ECOBUY_DB_PORT" default:"5432"`
	User     string `envconfig:"ECOBUY_DB_USER"`
	Password string `envconfig:"ECOBUY_DB_PASSWORD"`
	Name     string `envconfig:"ECOBUY_DB_NAME"`
	SSLMode  string `envconfig:"ECOBUY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ECOBUY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ECOBUY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ECOBUY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ECOBUY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the account store runs on the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ECOBUY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ECOBUY_REDIS_ADDR"`
	Password     string        `envconfig:"ECOBUY_REDIS_PASSWORD"`
	DB           int           `envconfig:"ECOBUY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ECOBUY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ECOBUY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ECOBUY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ECOBUY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ECOBUY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// OptionalRedisConfig mirrors RedisConfig for processes where redis is only
// needed by some backends.
type OptionalRedisConfig struct {
	URL      string `envconfig:"ECOBUY_REDIS_URL"`
	Address  string `envconfig:"ECOBUY_REDIS_ADDR"`
	Password string `envconfig:"ECOBUY_REDIS_PASSWORD"`
	DB       int    `envconfig:"ECOBUY_REDIS_DB" default:"0"`
}

// Enabled reports whether any redis endpoint was configured.
func (r OptionalRedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// Full expands the optional config into a RedisConfig with the usual pool defaults.
func (r OptionalRedisConfig) Full() RedisConfig {
	return RedisConfig{
		URL:          r.URL,
		Address:      r.Address,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

type JWTConfig struct {
	Secret            string `envconfig:"ECOBUY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ECOBUY_JWT_ISSUER" default:"ecobuy"`
	ExpirationMinutes int    `envconfig:"ECOBUY_JWT_EXPIRATION_MINUTES" default:"10080"`
}

// AccessTokenTTL returns the lifetime of an issued access token.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	MinLength        int `envconfig:"ECOBUY_PASSWORD_MIN_LENGTH" default:"5"`
	ArgonMemoryKB    int `envconfig:"ECOBUY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ECOBUY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ECOBUY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ECOBUY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ECOBUY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ECOBUY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ECOBUY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ECOBUY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ECOBUY_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ECOBUY_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ECOBUY_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	RecoveryWindow     time.Duration `envconfig:"ECOBUY_AUTH_RATE_LIMIT_RECOVERY_WINDOW" default:"15m"`
	RecoveryEmailLimit int           `envconfig:"ECOBUY_AUTH_RATE_LIMIT_RECOVERY_EMAIL_LIMIT" default:"3"`
	RecoveryIPLimit    int           `envconfig:"ECOBUY_AUTH_RATE_LIMIT_RECOVERY_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate         bool `envconfig:"ECOBUY_AUTO_MIGRATE" default:"false"`
	RequireVerification bool `envconfig:"ECOBUY_REQUIRE_VERIFICATION" default:"false"`
}

type GoogleConfig struct {
	ClientID string `envconfig:"ECOBUY_GOOGLE_CLIENT_ID"`
}

// Enabled reports whether Google sign-in can be offered.
func (g GoogleConfig) Enabled() bool {
	return strings.TrimSpace(g.ClientID) != ""
}

type EmailConfig struct {
	ResendAPIKey string        `envconfig:"ECOBUY_RESEND_API_KEY"`
	FromEmail    string        `envconfig:"ECOBUY_EMAIL_FROM" default:"noreply@ecobuy.shop"`
	FromName     string        `envconfig:"ECOBUY_EMAIL_FROM_NAME" default:"EcoBuy"`
	VerifyURL    string        `envconfig:"ECOBUY_EMAIL_VERIFY_URL" default:"http://localhost:5173/verify"`
	CodeTTL      time.Duration `envconfig:"ECOBUY_VERIFICATION_CODE_TTL" default:"24h"`
	ResetURL     string        `envconfig:"ECOBUY_EMAIL_RESET_URL" default:"http://localhost:5173/reset-password"`
	ResetTTL     time.Duration `envconfig:"ECOBUY_PASSWORD_RESET_TTL" default:"1h"`
}

type AccountServiceConfig struct {
	BaseURL       string        `envconfig:"ECOBUY_ACCOUNT_SERVICE_URL"`
	Timeout       time.Duration `envconfig:"ECOBUY_ACCOUNT_SERVICE_TIMEOUT" default:"10s"`
	SyncRate      float64       `envconfig:"ECOBUY_SYNC_RATE_PER_SECOND" default:"5"`
	SyncBurst     int           `envconfig:"ECOBUY_SYNC_BURST" default:"10"`
	SyncQueueSize int           `envconfig:"ECOBUY_SYNC_QUEUE_SIZE" default:"64"`
	Offline       bool          `envconfig:"ECOBUY_OFFLINE" default:"false"`
}

// Enabled reports whether the store should talk to a remote account service.
func (a AccountServiceConfig) Enabled() bool {
	return !a.Offline && strings.TrimSpace(a.BaseURL) != ""
}

type CacheConfig struct {
	Backend   string `envconfig:"ECOBUY_CACHE_BACKEND" default:"file"`
	Dir       string `envconfig:"ECOBUY_CACHE_DIR" default:".ecobuy"`
	Namespace string `envconfig:"ECOBUY_CACHE_NAMESPACE" default:"default"`
}

func (s *StorefrontConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Cache.Backend)) {
	case CacheBackendFile, CacheBackendMemory:
	case CacheBackendRedis:
		if !s.Redis.Enabled() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvCacheBackend, EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unsupported cache backend %q", s.Cache.Backend)
	}
	if s.AccountService.BaseURL != "" {
		if _, err := url.ParseRequestURI(s.AccountService.BaseURL); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAccountServiceURL, err)
		}
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
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
