// Package config loads the casecoord configuration file and turns it into
// stores, coordination services and servers.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CASECOORD_*, e.g. CASECOORD_SERVER_LISTEN_ADDRESS)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "CASECOORD"

// Config is the complete casecoord configuration.
type Config struct {
	// Logging controls log output.
	Logging LoggingConfig `mapstructure:"logging"`

	// Coordination locates the coordination store and configures the service on top of it.
	Coordination CoordinationConfig `mapstructure:"coordination"`

	// IndexServer is the fallback source for the coordination endpoint.
	IndexServer IndexServerConfig `mapstructure:"index_server"`

	// Store selects the store implementation and holds its type-specific settings.
	Store StoreConfig `mapstructure:"store"`

	// Server configures the coordination server binary.
	Server ServerConfig `mapstructure:"server"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum level written. Valid values: debug, info, warn, error.
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// Format is the line format. Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// CoordinationConfig holds the primary coordination endpoint and service settings.
// Host and Port are optional; when either is unset the endpoint is derived
// from the index server.
type CoordinationConfig struct {
	Host string `mapstructure:"host" validate:"omitempty,hostname|ip"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`

	// RootNamespace is the node under which every category lives.
	RootNamespace string `mapstructure:"root_namespace" validate:"required,startswith=/"`

	// ConnectTimeout bounds establishing the store connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`

	// SessionTimeout is the store session timeout.
	SessionTimeout time.Duration `mapstructure:"session_timeout" validate:"gt=0"`

	// ReleaseTimeout bounds the release performed when a lock handle is closed.
	ReleaseTimeout time.Duration `mapstructure:"release_timeout" validate:"gt=0"`
}

// IndexServerConfig locates the index server whose host, with the port
// shifted by IndexPortOffset, is the fallback coordination endpoint.
type IndexServerConfig struct {
	Host string `mapstructure:"host" validate:"omitempty,hostname|ip"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// StoreConfig selects the store. Only the section matching Type is used.
type StoreConfig struct {
	// Type is one of zookeeper, memory, badger, remote.
	Type string `mapstructure:"type" validate:"required,oneof=zookeeper memory badger remote"`

	Zookeeper map[string]any `mapstructure:"zookeeper"`
	Memory    map[string]any `mapstructure:"memory"`
	Badger    map[string]any `mapstructure:"badger"`
	Remote    map[string]any `mapstructure:"remote"`
}

// ServerConfig configures the coordination server.
type ServerConfig struct {
	ListenAddress         string        `mapstructure:"listen_address" validate:"required,hostname_port"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests" validate:"gt=0"`
	SessionTTL            time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	SessionReapInterval   time.Duration `mapstructure:"session_reap_interval" validate:"gt=0"`

	// RateLimit is the number of requests allowed per RateLimitWindow per
	// client; 0 disables rate limiting.
	RateLimit       int           `mapstructure:"rate_limit" validate:"gte=0"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" validate:"gt=0"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// Load reads configuration from file and environment, applies defaults and
// validates the result. A missing file is not an error.
//
// An empty configPath searches the default location
// ($XDG_CONFIG_HOME/casecoord/config.yaml, or ~/.config/casecoord/config.yaml).
func Load(configPath string) (*Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply overrides
// (command-line flags) before calling Validate themselves.
func Read(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// setupViper configures environment overrides and the file location.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only reaches Unmarshal for keys viper already knows.
	for _, key := range settingKeys(Config{}) {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(GetConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

// GetConfigDir returns the default configuration directory.
func GetConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "casecoord")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "casecoord")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}
