package config

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/jathurchan/casecoord/client"
	"github.com/jathurchan/casecoord/coordination"
	"github.com/jathurchan/casecoord/lock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/metrics"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/store/badger"
	"github.com/jathurchan/casecoord/store/memory"
	"github.com/jathurchan/casecoord/store/zookeeper"
)

// memoryConfig is the store.memory section.
type memoryConfig struct {
	// MaxWaiters caps queued lock requests per path; 0 keeps the lock table default.
	MaxWaiters int `mapstructure:"max_waiters"`
}

// remoteConfig is the store.remote section.
type remoteConfig struct {
	// Endpoints lists coordination servers; empty uses the coordination endpoint.
	Endpoints        []string      `mapstructure:"endpoints"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	SessionKeepAlive time.Duration `mapstructure:"session_keepalive"`

	// MaxRetries overrides the retry count when set; 0 disables retries.
	MaxRetries *int `mapstructure:"max_retries"`
}

// decodeSection decodes a type-specific section, accepting duration strings
// such as "30s" and comma-separated lists.
func decodeSection(section string, in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("invalid store.%s config: %w", section, err)
	}
	return nil
}

func decodeZookeeper(in map[string]any) (zookeeper.Config, error) {
	var out zookeeper.Config
	err := decodeSection(StoreZookeeper, in, &out)
	return out, err
}

func decodeBadger(in map[string]any) (badger.Config, error) {
	var out badger.Config
	err := decodeSection(StoreBadger, in, &out)
	return out, err
}

func decodeMemory(in map[string]any) (memoryConfig, error) {
	var out memoryConfig
	err := decodeSection(StoreMemory, in, &out)
	return out, err
}

func decodeRemote(in map[string]any) (remoteConfig, error) {
	var out remoteConfig
	err := decodeSection(StoreRemote, in, &out)
	return out, err
}

// CreateStore opens the store selected by cfg.Store.Type.
func CreateStore(ctx context.Context, cfg *Config, log logger.Logger) (store.Store, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	switch cfg.Store.Type {
	case StoreZookeeper:
		return createZookeeperStore(ctx, cfg, log)
	case StoreMemory:
		return createMemoryStore(cfg, log)
	case StoreBadger:
		return createBadgerStore(ctx, cfg, log)
	case StoreRemote:
		return createRemoteStore(cfg, log)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Store.Type)
	}
}

func createZookeeperStore(ctx context.Context, cfg *Config, log logger.Logger) (store.Store, error) {
	zkCfg, err := decodeZookeeper(cfg.Store.Zookeeper)
	if err != nil {
		return nil, err
	}
	if len(zkCfg.Servers) == 0 {
		host, port, err := cfg.CoordinationEndpoint()
		if err != nil {
			return nil, err
		}
		zkCfg.Servers = []string{zookeeper.ServerAddress(host, port)}
	}
	if zkCfg.SessionTimeout == 0 {
		zkCfg.SessionTimeout = cfg.Coordination.SessionTimeout
	}
	if zkCfg.ConnectTimeout == 0 {
		zkCfg.ConnectTimeout = cfg.Coordination.ConnectTimeout
	}
	return zookeeper.New(ctx, zkCfg, zookeeper.WithLogger(log))
}

func createMemoryStore(cfg *Config, log logger.Logger) (store.Store, error) {
	memCfg, err := decodeMemory(cfg.Store.Memory)
	if err != nil {
		return nil, err
	}
	return memory.New(
		memory.WithLogger(log),
		memory.WithLockTable(newLockTable(log, memCfg.MaxWaiters)),
	), nil
}

func createBadgerStore(ctx context.Context, cfg *Config, log logger.Logger) (store.Store, error) {
	badgerCfg, err := decodeBadger(cfg.Store.Badger)
	if err != nil {
		return nil, err
	}
	st, err := badger.New(ctx, badgerCfg,
		badger.WithLogger(log),
		badger.WithLockTable(newLockTable(log, 0)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return st, nil
}

func createRemoteStore(cfg *Config, log logger.Logger) (store.Store, error) {
	remote, err := decodeRemote(cfg.Store.Remote)
	if err != nil {
		return nil, err
	}
	if len(remote.Endpoints) == 0 {
		addr, err := cfg.CoordinationAddress()
		if err != nil {
			return nil, err
		}
		remote.Endpoints = []string{addr}
	}

	b := client.NewBuilder(remote.Endpoints).
		WithTimeouts(remote.DialTimeout, remote.RequestTimeout).
		WithSessionKeepAlive(remote.SessionKeepAlive).
		WithCloseTimeout(cfg.Coordination.ReleaseTimeout).
		WithLogger(log).
		WithMetrics(metrics.NewClientMetrics())
	if remote.MaxRetries != nil {
		b = b.WithRetryOptions(*remote.MaxRetries, 0, 0, 0)
	}
	return b.Build()
}

// newLockTable builds the in-process lock table of the memory and badger stores.
func newLockTable(log logger.Logger, maxWaiters int) *lock.Table {
	return lock.NewTable(
		lock.WithLogger(log),
		lock.WithMetrics(metrics.NewLockMetrics()),
		lock.WithMaxWaiters(maxWaiters),
	)
}

// NewService opens the configured store and provisions the coordination
// namespace on it. The store is closed if provisioning fails.
func NewService(ctx context.Context, cfg *Config, log logger.Logger) (*coordination.Service, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Coordination.ConnectTimeout)
	defer cancel()

	st, err := CreateStore(connectCtx, cfg, log)
	if err != nil {
		return nil, &coordination.ServiceUnavailableError{Err: err}
	}

	svc, err := coordination.New(connectCtx, st,
		coordination.WithRootNamespace(cfg.Coordination.RootNamespace),
		coordination.WithReleaseTimeout(cfg.Coordination.ReleaseTimeout),
		coordination.WithLogger(log),
		coordination.WithMetrics(metrics.NewCoordinationMetrics()),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return svc, nil
}

// NewProvider returns a Provider that connects with NewService on first use.
func NewProvider(cfg *Config, log logger.Logger) *coordination.Provider {
	return coordination.NewProvider(func(ctx context.Context) (*coordination.Service, error) {
		return NewService(ctx, cfg, log)
	})
}

// NewLogger returns the logger described by the logging section.
func NewLogger(cfg LoggingConfig) logger.Logger {
	return logger.NewStdLoggerWithFormat(cfg.Level, cfg.Format)
}
