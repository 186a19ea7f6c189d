package config

import (
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/metrics"
	"github.com/jathurchan/casecoord/server"
	"github.com/jathurchan/casecoord/store"
)

// NewServer builds a coordination server over st from the server section.
func NewServer(cfg *Config, st store.Store, log logger.Logger) (server.CoordinationServer, error) {
	s := cfg.Server
	return server.NewCoordinationServerBuilder().
		WithStore(st).
		WithListenAddress(s.ListenAddress).
		WithTimeouts(s.RequestTimeout, s.ShutdownTimeout).
		WithSessions(s.SessionTTL, s.SessionReapInterval, cfg.Coordination.ReleaseTimeout).
		WithMaxConcurrentRequests(s.MaxConcurrentRequests).
		WithRateLimit(s.RateLimit > 0, s.RateLimit, s.RateLimitBurst, s.RateLimitWindow).
		WithLogger(log).
		WithMetrics(metrics.NewServerMetrics()).
		Build()
}

// NewMetricsServer returns the Prometheus endpoint server, or nil when
// metrics are disabled.
func NewMetricsServer(cfg *Config, log logger.Logger) *metrics.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	metrics.InitRegistry()
	return metrics.NewServer(metrics.ServerConfig{
		ListenAddress: cfg.Metrics.ListenAddress,
		Logger:        log,
	})
}
