package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stakingcore/config"
	"stakingcore/node"
	"stakingcore/observability"
	"stakingcore/observability/logging"
	telemetry "stakingcore/observability/otel"
	"stakingcore/services/stakingd/audit"
	"stakingcore/services/stakingd/middleware"
	"stakingcore/services/stakingd/server"
	"stakingcore/storage"
)

func main() {
	var cfgPath string
	var debug bool
	flag.StringVar(&cfgPath, "config", "stakingd.toml", "path to stakingd configuration")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := logging.Setup("stakingd", cfg.Service.Environment, logging.Options{
		File:       cfg.Service.LogFile,
		MaxSizeMB:  cfg.Service.LogMaxSizeMB,
		MaxBackups: 5,
		Level:      level,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "stakingd",
		Environment: cfg.Service.Environment,
		Endpoint:    cfg.Service.Telemetry.Endpoint,
		Insecure:    cfg.Service.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	if err := os.MkdirAll(cfg.Service.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.Service.DataDir, "state"))
	if err != nil {
		logger.Error("open state database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := audit.Open(cfg.Service.DatabasePath, logger.With("component", "audit"))
	if err != nil {
		logger.Error("open audit store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	n, err := node.New(cfg, db,
		node.WithSink(store),
		node.WithSink(observability.Events()),
		node.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)
	if err != nil {
		logger.Error("start node", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Node:  n,
		Audit: store,
		Auth: middleware.AuthConfig{
			HMACSecret: cfg.Service.Auth.HMACSecret,
			Issuer:     cfg.Service.Auth.Issuer,
			Audience:   cfg.Service.Auth.Audience,
			ClockSkew:  cfg.Service.Auth.ClockSkew.Duration,
		},
		RateLimit: middleware.RateLimit{
			RequestsPerSecond: cfg.Service.RateLimit.RequestsPerSecond,
			Burst:             cfg.Service.RateLimit.Burst,
		},
		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Service.ListenAddress,
		Handler:           otelhttp.NewHandler(srv.Handler(), "stakingd"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Service.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("listen and serve", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
}
