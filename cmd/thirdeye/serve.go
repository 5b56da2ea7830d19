package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/config"
	httpserver "github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/http"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the eye registry, flows and breaker status over HTTP.

Examples:
  # Defaults from config
  thirdeye serve

  # Override the listen address
  thirdeye serve --host 0.0.0.0 --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, path, cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host")
	cmd.Flags().IntVar(&port, "port", 0, "listen port")
	return cmd
}

// runServe blocks until ctx is cancelled or the listener fails.
func runServe(ctx context.Context, path string, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	shutdownTimeout := cfg.Server.ShutdownTimeout.Duration()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Close(closeCtx)
	}()
	logger := a.logger.Underlying()

	srv, err := httpserver.NewServer(httpserver.Deps{
		Eyes:     a.eyes,
		Flows:    a.flows,
		Breakers: a.breakers,
		Gatherer: a.prom,
		Metrics:  httpserver.NewMetrics(a.telemetry.Meter(instrumentationName+"/http"), logger),
		Logger:   logger,
	}, &httpserver.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		ReadTimeout: cfg.Server.ReadTimeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	stopWatch := a.watchConfig(ctx, path)
	defer stopWatch()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr()))
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown failed: %w", err)
	}
	return <-errCh
}

// loadConfig resolves --config and loads it. A missing file yields defaults.
func loadConfig() (string, config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return "", config.Config{}, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return path, cfg, nil
}

// watchConfig hot-reloads the log level. Other settings need a restart.
func (a *app) watchConfig(ctx context.Context, path string) func() {
	logger := a.logger.Underlying()
	w, err := config.NewWatcher(path, func(c config.Config) {
		if c.Logging.Level == a.cfg.Logging.Level {
			return
		}
		if err := a.logger.SetLevel(c.Logging.Level); err != nil {
			logger.Warn("ignoring log level change", zap.Error(err))
			return
		}
		logger.Info("log level changed",
			zap.String("from", a.cfg.Logging.Level),
			zap.String("to", c.Logging.Level),
		)
		a.cfg.Logging.Level = c.Logging.Level
	}, logger)
	if err != nil {
		logger.Warn("config watcher disabled", zap.Error(err))
		return func() {}
	}
	if err := w.Start(ctx); err != nil {
		logger.Warn("config watcher disabled", zap.String("path", path), zap.Error(err))
		return func() {}
	}
	return w.Stop
}
