package config

import (
	"github.com/jathurchan/casecoord/coordination"
	"github.com/jathurchan/casecoord/metrics"
	"github.com/jathurchan/casecoord/server"
	"github.com/jathurchan/casecoord/store/zookeeper"
)

// Store types accepted in store.type.
const (
	StoreZookeeper = "zookeeper"
	StoreMemory    = "memory"
	StoreBadger    = "badger"
	StoreRemote    = "remote"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// ApplyDefaults fills zero values with defaults. Explicit values are kept.
// The coordination endpoint is left unset so the index server fallback applies.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCoordinationDefaults(&cfg.Coordination)
	applyStoreDefaults(&cfg.Store)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

func applyCoordinationDefaults(cfg *CoordinationConfig) {
	if cfg.RootNamespace == "" {
		cfg.RootNamespace = coordination.DefaultRootNamespace
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = zookeeper.DefaultConnectTimeout
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = zookeeper.DefaultSessionTimeout
	}
	if cfg.ReleaseTimeout == 0 {
		cfg.ReleaseTimeout = coordination.DefaultReleaseTimeout
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = StoreZookeeper
	}
	if cfg.Zookeeper == nil {
		cfg.Zookeeper = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = map[string]any{"path": "casecoord-data"}
	}
	if cfg.Remote == nil {
		cfg.Remote = make(map[string]any)
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = server.DefaultListenAddress
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = server.DefaultRequestTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = server.DefaultShutdownTimeout
	}
	if cfg.MaxConcurrentRequests == 0 {
		cfg.MaxConcurrentRequests = server.DefaultMaxConcurrentRequests
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = server.DefaultSessionTTL
	}
	if cfg.SessionReapInterval == 0 {
		cfg.SessionReapInterval = server.DefaultSessionReapInterval
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = server.DefaultRateLimitWindow
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = metrics.DefaultListenAddress
	}
}
