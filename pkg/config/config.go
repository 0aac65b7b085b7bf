package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvLocal is the environment name for a developer machine.
const EnvLocal = "local"

// localSessionSecret signs session tokens when running locally without SESSION_SECRET.
const localSessionSecret = "flightops-local-development-only"

// Config holds all configuration for flightops.
// Configuration can come from a YAML file (--config) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, tokens) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth          AuthConfig          `yaml:"auth"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether Telegram initData signatures are checked.
	// May only be disabled when Env is "local".
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// SessionSecret signs session tokens and the session cookie.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML

	TokenTTL       time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"24h"`
	InitDataMaxAge time.Duration `yaml:"init_data_max_age" env:"AUTH_INIT_DATA_MAX_AGE" env-default:"24h"`

	// Login attempts per client IP per window. Needs Redis; zero disables the limit.
	LoginRateLimit  int           `yaml:"login_rate_limit" env:"AUTH_LOGIN_RATE_LIMIT" env-default:"20"`
	LoginRateWindow time.Duration `yaml:"login_rate_window" env:"AUTH_LOGIN_RATE_WINDOW" env-default:"1m"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"flightops"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"flightops"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the optional Redis connection used for login rate limiting.
// An empty Host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	BotToken      string `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`      // Secret - not in YAML
	WebhookSecret string `yaml:"-" env:"TELEGRAM_WEBHOOK_SECRET"` // Secret - not in YAML

	// WebAppURL is opened by the /start button.
	WebAppURL string `yaml:"web_app_url" env:"TELEGRAM_WEB_APP_URL" env-default:""`

	// APIEndpoint overrides the Bot API endpoint format (self-hosted Bot API servers).
	APIEndpoint string `yaml:"api_endpoint" env:"TELEGRAM_API_ENDPOINT" env-default:""`
}

// NotificationsConfig bounds the background status-change fan-out.
type NotificationsConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent" env:"NOTIFY_MAX_CONCURRENT" env-default:"8"`
	Timeout       time.Duration `yaml:"timeout" env:"NOTIFY_TIMEOUT" env-default:"30s"`
}

// Load reads configuration with environment variable overrides.
// A .env file in the working directory is loaded first if present.
// When path is empty only the environment is read; otherwise the YAML file must exist.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateAuth(); err != nil {
		return nil, fmt.Errorf("invalid auth configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// IsLocal reports whether the server runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// validateAuth enforces that production never runs without signature checks or secrets.
func (c *Config) validateAuth() error {
	if c.IsLocal() {
		if c.Auth.SessionSecret == "" {
			c.Auth.SessionSecret = localSessionSecret
		}
		return nil
	}

	if !c.Auth.EnableVerification {
		return fmt.Errorf("auth verification may only be disabled when env is %q", EnvLocal)
	}
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required outside local development")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required outside local development")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
