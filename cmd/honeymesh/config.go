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
	Docker    DockerConfig    `mapstructure:"docker"`
	Log       LogConfig       `mapstructure:"log"`
	Data      DataConfig      `mapstructure:"data"`
	Health    HealthConfig    `mapstructure:"health"`
	Ops       OpsConfig       `mapstructure:"ops"`
	Templates TemplatesConfig `mapstructure:"templates"`
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

// DatabaseConfig holds registry database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DataConfig holds on-disk layout configuration.
type DataConfig struct {
	// Dir is the base directory under which each deployment gets its
	// directory tree (configs, honeyfs, logs, backups).
	Dir string `mapstructure:"dir"`
}

// HealthConfig holds health monitor configuration.
type HealthConfig struct {
	// Interval is how often every active deployment is probed.
	Interval time.Duration `mapstructure:"interval"`

	// ProbeTimeout is the timeout for a single service probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	// MissThreshold is how many consecutive failed probes mark a
	// service down.
	MissThreshold int `mapstructure:"miss_threshold"`

	// MaxConcurrent caps how many deployments are probed at once.
	MaxConcurrent int `mapstructure:"max_concurrent"`

	// EscalationThreshold is how long a deployment may stay unhealthy
	// before an escalation event flags it for manual intervention.
	EscalationThreshold time.Duration `mapstructure:"escalation_threshold"`
}

// OpsConfig holds lifecycle operation configuration.
type OpsConfig struct {
	// MaxConcurrent caps concurrent lifecycle operations across all
	// deployments.
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// TemplatesConfig holds template seeding configuration.
type TemplatesConfig struct {
	// SeedPresets registers the built-in industry templates in the
	// registry on startup. Already-registered versions are left alone.
	SeedPresets bool `mapstructure:"seed_presets"`
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
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/honeymesh.db")
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("data.dir", "./data/deployments")
	v.SetDefault("health.interval", "30s")
	v.SetDefault("health.probe_timeout", "5s")
	v.SetDefault("health.miss_threshold", 3)
	v.SetDefault("health.max_concurrent", 4)
	v.SetDefault("health.escalation_threshold", "10m")
	v.SetDefault("ops.max_concurrent", 4)
	v.SetDefault("templates.seed_presets", true)

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
	v.SetEnvPrefix("HONEYMESH")
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
