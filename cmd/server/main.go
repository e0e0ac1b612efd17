// Package main runs the stats API together with scheduled aggregation:
//   - HTTP API and websocket feed (continuous)
//   - Aggregation (cron schedule): one pass per configured network
//   - Prometheus metrics (continuous)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"amm-stats/internal/app"
	"amm-stats/internal/config"
	"amm-stats/internal/logging"
	"amm-stats/internal/observability"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG", "config.yaml"), "Path to the YAML configuration")
	useCache := flag.Bool("use-cache", false, "Answer pool account lookups from the account cache where possible")
	runOnStart := flag.Bool("run-on-start", true, "Run one aggregation pass before the first scheduled run")
	flag.Parse()

	if err := run(*configPath, *useCache, *runOnStart); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useCache, runOnStart bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	srv, err := newServer(cfg, stores, useCache, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	// Start metrics server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux()}
		go func() {
			logger.Info("metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer shutdown(metricsSrv, cfg.Server.ShutdownTimeout, logger)
	}

	if err := srv.Start(ctx, runOnStart); err != nil {
		return err
	}

	apiSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", zap.String("addr", cfg.Server.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdown(apiSrv, cfg.Server.ShutdownTimeout, logger)
	srv.Stop(cfg.Server.ShutdownTimeout)
	logger.Info("server stopped")
	return nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	return mux
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
