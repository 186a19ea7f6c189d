package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jathurchan/casecoord/config"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/metrics"
	"github.com/jathurchan/casecoord/server"
	"github.com/jathurchan/casecoord/store"
)

const (
	AppName    = "Case Coordination Server"
	AppVersion = "v1.0.0"
	AppDesc    = "gRPC server exposing a coordination store with distributed locks and node data"
)

// AppConfig is the resolved configuration of one server process.
type AppConfig struct {
	ConfigPath  string
	ShowVersion bool
	Config      *config.Config
}

// parseAndValidateFlags parses the command line, loads the configuration
// file and applies flag overrides on top of it.
func parseAndValidateFlags() (*AppConfig, error) {
	var (
		configPath = flag.String("config", "", "Path to the configuration file (default: "+config.GetDefaultConfigPath()+")")
		version    = flag.Bool("version", false, "Print version and exit")
		listen     = flag.String("listen", "", "Override server.listen_address")
		storeType  = flag.String("store", "", "Override store.type (zookeeper, memory, badger, remote)")
		logLevel   = flag.String("log-level", "", "Override logging.level")
		metricsOn  = flag.Bool("metrics", false, "Enable the Prometheus endpoint")
	)
	flag.Parse()

	app := &AppConfig{ConfigPath: *configPath, ShowVersion: *version}
	if app.ShowVersion {
		return app, nil
	}

	cfg, err := config.Read(app.ConfigPath)
	if err != nil {
		return nil, err
	}
	if *listen != "" {
		cfg.Server.ListenAddress = *listen
	}
	if *storeType != "" {
		cfg.Store.Type = *storeType
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *metricsOn {
		cfg.Metrics.Enabled = true
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg
	return app, nil
}

func createLogger(cfg config.LoggingConfig) logger.Logger {
	return config.NewLogger(cfg).WithComponent("main")
}

// buildServer opens the configured store and builds the server over it.
// The store is closed if the server cannot be built.
func buildServer(ctx context.Context, app *AppConfig, log logger.Logger) (server.CoordinationServer, store.Store, error) {
	cfg := app.Config

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Coordination.ConnectTimeout)
	defer cancel()

	st, err := config.CreateStore(connectCtx, cfg, log.WithComponent("store"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Type, err)
	}

	srv, err := config.NewServer(cfg, st, log.WithComponent("server"))
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to build server: %w", err)
	}
	return srv, st, nil
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(log logger.Logger) os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	log.Infow("Received shutdown signal", "signal", sig.String())
	return sig
}

// gracefulShutdown stops the server, then closes the store.
func gracefulShutdown(srv server.CoordinationServer, st store.Store, timeout time.Duration, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := srv.Stop(ctx); err != nil && !errors.Is(err, server.ErrServerNotStarted) {
		log.Errorw("Server shutdown failed", "error", err)
		errs = append(errs, err)
	}
	if err := st.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
		log.Errorw("Store close failed", "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		log.Infow("Shutdown complete")
	}
	return errors.Join(errs...)
}

func run() error {
	app, err := parseAndValidateFlags()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if app.ShowVersion {
		fmt.Printf("%s %s\n", AppName, AppVersion)
		return nil
	}

	cfg := app.Config
	log := createLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Must run before any component asks for its metrics.
	metricsServer := config.NewMetricsServer(cfg, log.WithComponent("metrics"))
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				log.Errorw("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer stopCancel()
			_ = metricsServer.Stop(stopCtx)
		}()
	}

	srv, st, err := buildServer(ctx, app, log)
	if err != nil {
		return err
	}

	log.Infow("Starting server",
		"version", AppVersion,
		"listen", cfg.Server.ListenAddress,
		"store", cfg.Store.Type,
		"metrics", metrics.IsEnabled())

	if err := srv.Start(ctx); err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Infow("Server is running", "addr", srv.Addr())

	waitForShutdown(log)
	return gracefulShutdown(srv, st, cfg.Server.ShutdownTimeout, log)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}
