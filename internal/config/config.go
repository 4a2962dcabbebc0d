package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	MQ           MQConfig
	SLA          SLAConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminRole             string

	// BootstrapAdminEmail seeds an admin staff member on an empty store.
	BootstrapAdminEmail string
}

// NotificationConfig configures outbound delivery of domain events.
type NotificationConfig struct {
	EmailFrom      string
	WebhookURL     string
	WebhookTimeout time.Duration
	QueueSize      int
}

// MQConfig configures the RabbitMQ event bridge. An empty URL disables it.
type MQConfig struct {
	URL      string
	Exchange string
}

// SLAConfig tunes the periodic SLA sweep.
type SLAConfig struct {
	SweepSchedule   string
	Workers         int
	PageSize        int
	LockTTL         time.Duration
	RetryInitial    time.Duration
	RetryMax        time.Duration
	SweepOnStartup  bool
	DisableSweeper  bool
	WarningDefaults int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminRole:             getEnv("AUTH_ADMIN_ROLE", "ADMIN"),
			BootstrapAdminEmail:   os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeout: getEnvAsDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
		MQ: MQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "helpdesk.events"),
		},
		SLA: SLAConfig{
			SweepSchedule:   getEnv("SLA_SWEEP_SCHEDULE", "@every 5m"),
			Workers:         getEnvAsInt("SLA_SWEEP_WORKERS", 8),
			PageSize:        getEnvAsInt("SLA_SWEEP_PAGE_SIZE", 200),
			LockTTL:         getEnvAsDuration("SLA_SWEEP_LOCK_TTL", 4*time.Minute),
			RetryInitial:    getEnvAsDuration("SLA_RETRY_INITIAL", 5*time.Minute),
			RetryMax:        getEnvAsDuration("SLA_RETRY_MAX", time.Hour),
			SweepOnStartup:  getEnvAsBool("SLA_SWEEP_ON_STARTUP", true),
			DisableSweeper:  getEnvAsBool("SLA_SWEEPER_DISABLED", false),
			WarningDefaults: getEnvAsInt("SLA_DEFAULT_WARNING_THRESHOLD", 80),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.SLA.Workers <= 0 {
		return fmt.Errorf("SLA_SWEEP_WORKERS must be positive, got %d", c.SLA.Workers)
	}
	if c.SLA.PageSize <= 0 {
		return fmt.Errorf("SLA_SWEEP_PAGE_SIZE must be positive, got %d", c.SLA.PageSize)
	}
	if c.SLA.WarningDefaults < 0 || c.SLA.WarningDefaults > 100 {
		return fmt.Errorf("SLA_DEFAULT_WARNING_THRESHOLD must be within 0..100, got %d", c.SLA.WarningDefaults)
	}
	if c.Notification.QueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive, got %d", c.Notification.QueueSize)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the bearer token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
