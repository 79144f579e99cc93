// Package config provides configuration management for the submission service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the submission service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Auth contains bearer token verification settings.
	Auth AuthConfig `mapstructure:"auth"`
	// Uploads contains manuscript upload limits.
	Uploads UploadsConfig `mapstructure:"uploads"`
	// Payment contains submission fee settings.
	Payment PaymentConfig `mapstructure:"payment"`
	// Advisory contains LLM client settings for manuscript assessment.
	Advisory AdvisoryConfig `mapstructure:"advisory"`
	// Kafka contains Kafka publisher settings for the outbox pattern.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Outbox contains outbox relay settings.
	Outbox OutboxConfig `mapstructure:"outbox"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 50).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 10).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// Secret is the HMAC signing secret (loaded from SUBMISSION_AUTH_SECRET env var).
	Secret string `mapstructure:"-"`
	// Issuer is the expected token issuer. Empty disables the check.
	Issuer string `mapstructure:"issuer"`
	// Audience is the expected token audience. Empty disables the check.
	Audience string `mapstructure:"audience"`
}

// UploadsConfig holds manuscript upload limits.
type UploadsConfig struct {
	// MaxFileSize is the maximum manuscript file size in bytes (default: 20 MiB).
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// PaymentConfig holds submission fee settings.
type PaymentConfig struct {
	// FeeAmount is the submission fee in the minor currency unit (cents).
	FeeAmount int64 `mapstructure:"fee_amount"`
	// Currency is the ISO 4217 currency code for the fee.
	Currency string `mapstructure:"currency"`
	// Window is how long a pay-later submission has before it is reported overdue.
	Window time.Duration `mapstructure:"window"`
	// ProcessingDelay is the simulated gateway processing time.
	ProcessingDelay time.Duration `mapstructure:"processing_delay"`
}

// AdvisoryConfig holds LLM client configuration for manuscript assessment.
type AdvisoryConfig struct {
	// Enabled controls whether uploads are assessed at all.
	Enabled bool `mapstructure:"enabled"`
	// Provider is the LLM provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// MaxExcerptChars caps how much manuscript text is sent for assessment.
	MaxExcerptChars int `mapstructure:"max_excerpt_chars"`
	// RateLimitRPS is the requests per second limit for LLM calls.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from SUBMISSION_ADVISORY_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from SUBMISSION_ADVISORY_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// KafkaConfig holds Kafka publisher settings for the outbox pattern.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish outbox events to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// OutboxConfig holds outbox relay settings.
type OutboxConfig struct {
	// PollInterval is how often the relay polls for pending events.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// BatchSize is the number of events to process per batch.
	BatchSize int `mapstructure:"batch_size"`
	// MaxRetries is the maximum retry attempts before dead-lettering.
	MaxRetries int `mapstructure:"max_retries"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("SUBMISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/submission-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Auth.Secret = os.Getenv("SUBMISSION_AUTH_SECRET")

	// Advisory provider API keys.
	cfg.Advisory.OpenAI.APIKey = os.Getenv("SUBMISSION_ADVISORY_OPENAI_API_KEY")
	cfg.Advisory.Anthropic.APIKey = os.Getenv("SUBMISSION_ADVISORY_ANTHROPIC_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "submission")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "submission_service")
	// Default to "require" for production security. Use SUBMISSION_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 10)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Auth defaults
	// The signing secret is loaded exclusively from SUBMISSION_AUTH_SECRET (see loadSecrets).
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	// Upload defaults
	v.SetDefault("uploads.max_file_size", 20<<20)

	// Payment defaults
	v.SetDefault("payment.fee_amount", 15000)
	v.SetDefault("payment.currency", "USD")
	v.SetDefault("payment.window", "2h")
	v.SetDefault("payment.processing_delay", "2s")

	// Advisory defaults
	v.SetDefault("advisory.enabled", true)
	v.SetDefault("advisory.provider", "openai")
	v.SetDefault("advisory.timeout", "60s")
	v.SetDefault("advisory.max_retries", 3)
	v.SetDefault("advisory.retry_delay", "2s")
	v.SetDefault("advisory.temperature", 0.2)
	v.SetDefault("advisory.max_excerpt_chars", 24000)
	v.SetDefault("advisory.rate_limit_rps", 5.0)
	v.SetDefault("advisory.rate_limit_burst", 10)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("advisory.openai.model", "gpt-4-turbo")
	v.SetDefault("advisory.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("advisory.anthropic.model", "claude-3-sonnet-20240229")
	v.SetDefault("advisory.anthropic.base_url", "https://api.anthropic.com")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.outbox.submission_service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Outbox relay defaults
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retries", 5)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate auth config
	if c.Auth.Secret == "" {
		return fmt.Errorf("SUBMISSION_AUTH_SECRET is required")
	}

	// Validate upload limits
	if c.Uploads.MaxFileSize <= 0 {
		return fmt.Errorf("uploads max_file_size must be positive")
	}

	// Validate payment config
	if c.Payment.FeeAmount < 0 {
		return fmt.Errorf("payment fee_amount must not be negative")
	}
	if c.Payment.Window <= 0 {
		return fmt.Errorf("payment window must be positive")
	}

	// Validate that the configured advisory provider has its required API key set.
	if c.Advisory.Enabled {
		switch strings.ToLower(c.Advisory.Provider) {
		case "openai":
			if c.Advisory.OpenAI.APIKey == "" {
				return fmt.Errorf("advisory provider %q requires SUBMISSION_ADVISORY_OPENAI_API_KEY to be set", c.Advisory.Provider)
			}
		case "anthropic":
			if c.Advisory.Anthropic.APIKey == "" {
				return fmt.Errorf("advisory provider %q requires SUBMISSION_ADVISORY_ANTHROPIC_API_KEY to be set", c.Advisory.Provider)
			}
		default:
			return fmt.Errorf("unknown advisory provider: %s", c.Advisory.Provider)
		}
	}

	// Validate Kafka config
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	return nil
}
