package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig prefix applied to every setting.
const EnvPrefix = "prizevault"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error text).
const (
	EnvAppEnv   = "PRIZEVAULT_APP_ENV"
	EnvPort     = "PRIZEVAULT_APP_PORT"
	EnvDBDSN    = "PRIZEVAULT_DB_DSN"
	EnvDBHost   = "PRIZEVAULT_DB_HOST"
	EnvDBUser   = "PRIZEVAULT_DB_USER"
	EnvDBName   = "PRIZEVAULT_DB_NAME"
	EnvRedisURL = "PRIZEVAULT_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Engine       EngineConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PRIZEVAULT_APP_ENV" required:"true"`
	Port         string `envconfig:"PRIZEVAULT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PRIZEVAULT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRIZEVAULT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PRIZEVAULT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PRIZEVAULT_DB_DSN"`
	Driver string `envconfig:"PRIZEVAULT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRIZEVAULT_DB_HOST"`
	LegacyPort     int    `envconfig:"PRIZEVAULT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRIZEVAULT_DB_USER"`
	LegacyPassword string `envconfig:"PRIZEVAULT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRIZEVAULT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRIZEVAULT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRIZEVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRIZEVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRIZEVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRIZEVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRIZEVAULT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRIZEVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"PRIZEVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRIZEVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRIZEVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRIZEVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRIZEVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRIZEVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRIZEVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// EngineConfig tunes the adaptive probability controller and the draw engine.
type EngineConfig struct {
	Gain              float64 `envconfig:"PRIZEVAULT_ENGINE_GAIN" default:"1.5"`
	ProbabilityMin    float64 `envconfig:"PRIZEVAULT_ENGINE_P_MIN" default:"0.01"`
	ProbabilityMax    float64 `envconfig:"PRIZEVAULT_ENGINE_P_MAX" default:"0.95"`
	EmergencyP        float64 `envconfig:"PRIZEVAULT_ENGINE_P_EMERGENCY" default:"0.001"`
	BlackoutP         float64 `envconfig:"PRIZEVAULT_ENGINE_P_BLACKOUT" default:"0.02"`
	EventP            float64 `envconfig:"PRIZEVAULT_ENGINE_P_EVENT" default:"0.75"`
	MaxCommitAttempts int     `envconfig:"PRIZEVAULT_ENGINE_MAX_COMMIT_ATTEMPTS" default:"3"`
	MaxRedrawAttempts int     `envconfig:"PRIZEVAULT_ENGINE_MAX_REDRAW_ATTEMPTS" default:"3"`
	MinHealthSample   int64   `envconfig:"PRIZEVAULT_ENGINE_MIN_HEALTH_SAMPLE" default:"50"`
}

func (e EngineConfig) validate() error {
	if e.ProbabilityMin < 0 || e.ProbabilityMax > 1 || e.ProbabilityMin > e.ProbabilityMax {
		return fmt.Errorf("engine probability bounds invalid: min=%v max=%v", e.ProbabilityMin, e.ProbabilityMax)
	}
	if e.Gain < 0 {
		return fmt.Errorf("engine gain must be non-negative, got %v", e.Gain)
	}
	if e.MaxCommitAttempts < 1 {
		return fmt.Errorf("engine max commit attempts must be at least 1, got %d", e.MaxCommitAttempts)
	}
	return nil
}

// CronConfig tunes the background worker cadence and coordination lock.
type CronConfig struct {
	Interval time.Duration `envconfig:"PRIZEVAULT_CRON_INTERVAL" default:"5m"`
	LockKey  string        `envconfig:"PRIZEVAULT_CRON_LOCK_KEY" default:"prizevault:cron:lock"`
	LockTTL  time.Duration `envconfig:"PRIZEVAULT_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PRIZEVAULT_AUTO_MIGRATE" default:"false"`
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
