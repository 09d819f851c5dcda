package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime settings. Values are read once at process start
// and passed by reference into the components that need them; nothing reads
// the environment after Load returns.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `envconfig:"LISTEN" default:":8080"`

	// DatabaseURL is the SQLite location in sqlite:///path form.
	DatabaseURL string `envconfig:"DATABASE_URL" default:"sqlite:///data/app.db"`

	// WebhookSecret is the shared HMAC-SHA256 signing key. Empty is a fatal
	// startup condition in production (see Validate) and fails readiness.
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that must hold before serving traffic.
func (c *Config) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET must be set")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	return nil
}

// DBPath returns the filesystem path of the SQLite database, stripping the
// sqlite:/// URL prefix if present.
func (c *Config) DBPath() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite:///")
}
