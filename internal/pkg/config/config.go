package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr   string `env:"SERVER_ADDR" envDefault:":8000"`
	AdminAddr    string `env:"ADMIN_ADDR" envDefault:":9091"`
	MaxEventSize int64  `env:"MAX_EVENT_SIZE_BYTES" envDefault:"1048576"` // 1MB

	StoreBackend   string        `env:"STORE_BACKEND" envDefault:"postgres"`
	PostgresURL    string        `env:"POSTGRES_URL"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" envDefault:"false"`

	RedisAddr            string        `env:"REDIS_ADDR"`
	CountCacheTTL        time.Duration `env:"COUNT_CACHE_TTL" envDefault:"10m"`
	CountCacheSettle     time.Duration `env:"COUNT_CACHE_SETTLE" envDefault:"1m"`
	CountCacheMaxEntries int           `env:"COUNT_CACHE_MAX_ENTRIES" envDefault:"10000"` // in-process cache only

	WorkerID         uint64 `env:"SNOWFLAKE_WORKER_ID" envDefault:"0"`
	ProcessID        uint64 `env:"SNOWFLAKE_PROCESS_ID" envDefault:"0"`
	EpochStartMillis uint64 `env:"SNOWFLAKE_START_MILLIS" envDefault:"1420070400000"`

	RedactTagKeys []string `env:"REDACT_TAG_KEYS" envDefault:"email,password,credit_card,ssn" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required when STORE_BACKEND=postgres")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MaxEventSize <= 0 {
		return errors.New("MAX_EVENT_SIZE_BYTES must be positive")
	}
	return nil
}
