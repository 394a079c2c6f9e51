// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// --- HTTP ---
	Port uint16 `envconfig:"APP_PORT" default:"8080"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"duelpit"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"duelpit"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// --- Application ---
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	LogLevel        slog.Level    `envconfig:"APP_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`

	// --- Auth ---
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`

	// --- Wagers ---
	// Open offers live this long before the sweep cancels them.
	WagerExpiry time.Duration `envconfig:"WAGER_EXPIRY" default:"15m"`
	// Service fee taken from the pot on a standard win, in percent.
	FeePercent int64 `envconfig:"WAGER_FEE_PERCENT" default:"10"`

	// --- Matches ---
	LocationPool []string `envconfig:"MATCH_LOCATION_POOL" default:"eu-west,eu-east,na-east"`
	MapPool      []string `envconfig:"MATCH_MAP_POOL" default:"de_dust2,de_mirage,de_inferno,de_nuke,de_overpass,de_ancient,de_vertigo"`

	// --- Provisioning ---
	ProvisionerURL      string        `envconfig:"PROVISIONER_URL" default:"http://localhost:9000"`
	ProvisionerTimeout  time.Duration `envconfig:"PROVISIONER_TIMEOUT" default:"10s"`
	ProvisionerAttempts int           `envconfig:"PROVISIONER_MAX_ATTEMPTS" default:"3"`
	// How long a provisioning claim is honored before another worker may
	// take it over after a crash.
	ProvisionerClaimTTL time.Duration `envconfig:"PROVISIONER_CLAIM_TTL" default:"2m"`

	// --- Notifications ---
	// Empty disables the webhook sink.
	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL" default:""`
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.FeePercent < 0 || c.FeePercent > 100 {
		return fmt.Errorf("WAGER_FEE_PERCENT must be within [0,100], got %d", c.FeePercent)
	}
	if c.WagerExpiry <= 0 {
		return fmt.Errorf("WAGER_EXPIRY must be positive")
	}
	if len(c.LocationPool) < 2 {
		return fmt.Errorf("MATCH_LOCATION_POOL needs at least 2 candidates")
	}
	if len(c.MapPool) < 2 {
		return fmt.Errorf("MATCH_MAP_POOL needs at least 2 candidates")
	}
	if c.ProvisionerAttempts <= 0 {
		return fmt.Errorf("PROVISIONER_MAX_ATTEMPTS must be positive")
	}
	if c.ProvisionerClaimTTL <= 0 {
		return fmt.Errorf("PROVISIONER_CLAIM_TTL must be positive")
	}
	return nil
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
