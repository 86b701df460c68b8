package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Engine    EngineConfig    `mapstructure:"engine"`
	OrgAPI    OrgAPIConfig    `mapstructure:"orgapi"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SecurityConfig holds secrets for protecting stored credentials.
type SecurityConfig struct {
	// EncryptionKey is the 32-byte key for encrypting org access tokens.
	// Must be exactly 32 bytes for AES-256-GCM.
	// Set via ORGSHIFT_SECURITY_ENCRYPTION_KEY environment variable.
	EncryptionKey string `mapstructure:"encryption_key"`
}

// EngineConfig holds validation engine configuration.
type EngineConfig struct {
	// Timeout bounds a single validation run across all checks.
	Timeout time.Duration `mapstructure:"timeout"`

	// ReconnectURL is returned with token-expired errors.
	ReconnectURL string `mapstructure:"reconnect_url"`
}

// OrgAPIConfig holds org REST API client configuration.
type OrgAPIConfig struct {
	// Timeout is the per-request timeout for org API calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnalyticsConfig holds usage analytics configuration.
type AnalyticsConfig struct {
	// Enabled determines if usage events are reported upstream. Events are
	// recorded locally either way.
	Enabled bool `mapstructure:"enabled"`

	// BaseURL is the base URL of the analytics ingestion API.
	BaseURL string `mapstructure:"base_url"`

	// APIKey authenticates with the analytics API.
	APIKey string `mapstructure:"api_key"`

	// ReportInterval is how often to batch and report usage events.
	ReportInterval time.Duration `mapstructure:"report_interval"`

	// BatchSize is the maximum number of events per reporting batch.
	BatchSize int `mapstructure:"batch_size"`

	// BufferSize is the in-memory event queue size.
	BufferSize int `mapstructure:"buffer_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/orgshift.db")
	v.SetDefault("security.encryption_key", "") // Must be set via environment
	v.SetDefault("engine.timeout", "60s")
	v.SetDefault("engine.reconnect_url", "/settings/connections")
	v.SetDefault("orgapi.timeout", "30s")
	v.SetDefault("analytics.enabled", false)
	v.SetDefault("analytics.base_url", "")
	v.SetDefault("analytics.api_key", "")
	v.SetDefault("analytics.report_interval", "60s")
	v.SetDefault("analytics.batch_size", 100)
	v.SetDefault("analytics.buffer_size", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("ORGSHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
