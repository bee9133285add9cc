package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"crowdfund/internal/domain"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"crowdfund.db"`
	JWTSecret   string `env:"JWT_SECRET"`
	LogLevel    string `env:"LOG_LEVEL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"1"`

	PlatformIdentity string        `env:"PLATFORM_IDENTITY"`
	FeeNumerator     uint64        `env:"FEE_BPS" envDefault:"300"`
	FeeDenominator   uint64        `env:"FEE_DENOMINATOR" envDefault:"10000"`
	CampaignDuration time.Duration `env:"CAMPAIGN_DURATION" envDefault:"720h"`
	CampaignDeposit  uint64        `env:"CAMPAIGN_DEPOSIT" envDefault:"0"`
	ReceiptDeposit   uint64        `env:"RECEIPT_DEPOSIT" envDefault:"0"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RateLimitPerMin  int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	ReconcileInterval    time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileParallelism int           `env:"RECONCILE_PARALLELISM" envDefault:"4"`
}

// LoadConfig reads .env files when present, then parses the environment and
// validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, which must be positive")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if strings.TrimSpace(c.PlatformIdentity) == "" {
		return fmt.Errorf("PLATFORM_IDENTITY is required")
	}
	if domain.Identity(c.PlatformIdentity).Reserved() {
		return fmt.Errorf("PLATFORM_IDENTITY %q names an engine ledger account", c.PlatformIdentity)
	}
	if c.FeeDenominator == 0 || c.FeeNumerator > c.FeeDenominator {
		return fmt.Errorf("FEE_BPS must not exceed FEE_DENOMINATOR and the denominator must be positive")
	}
	if c.CampaignDuration <= 0 {
		return fmt.Errorf("CAMPAIGN_DURATION must be positive")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if c.ReconcileParallelism < 1 {
		c.ReconcileParallelism = 1
	}
	return nil
}

// RequirePersistentStore fails when the configured driver keeps state in
// process memory, where a separate process would see none of it.
func (c *Config) RequirePersistentStore(purpose string) error {
	if c.StoreDriver == DriverMemory {
		return fmt.Errorf("%s needs a persistent STORE_DRIVER (%s or %s)", purpose, DriverPostgres, DriverSQLite)
	}
	return nil
}
