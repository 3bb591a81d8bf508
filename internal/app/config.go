package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	// ClosePassword guards the maandafsluiting views. Leaving it empty keeps
	// the rest of the dashboard fully available.
	ClosePassword string `envconfig:"FINANCIAL_CLOSE_PASSWORD"`

	OdooURL     string        `envconfig:"ODOO_URL" default:"https://lab.odoo.works/jsonrpc"`
	OdooDB      string        `envconfig:"ODOO_DB"`
	OdooUID     int64         `envconfig:"ODOO_UID" default:"37"`
	OdooAPIKey  string        `envconfig:"ODOO_API_KEY"`
	OdooTimeout time.Duration `envconfig:"ODOO_TIMEOUT" default:"120s"`

	SnapshotPath    string        `envconfig:"SNAPSHOT_PATH"`
	SnapshotRefresh time.Duration `envconfig:"SNAPSHOT_REFRESH_INTERVAL" default:"30m"`
	SnapshotTTL     time.Duration `envconfig:"SNAPSHOT_TTL" default:"2h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	// The sync cadence is contractually between 15 and 60 minutes.
	if cfg.SnapshotRefresh < 15*time.Minute {
		cfg.SnapshotRefresh = 15 * time.Minute
	}
	if cfg.SnapshotRefresh > time.Hour {
		cfg.SnapshotRefresh = time.Hour
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ERPConfigured reports whether the Odoo read API can be queried.
func (c *Config) ERPConfigured() bool {
	return c != nil && c.OdooAPIKey != "" && c.OdooDB != ""
}
