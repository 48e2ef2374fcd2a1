package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/netgen/internal/config"
	"github.com/boddenberg/netgen/internal/handler"
	"github.com/boddenberg/netgen/internal/infra/observability"
	"github.com/boddenberg/netgen/internal/infra/provider"
	"github.com/boddenberg/netgen/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_, _ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("config_path", cfg.ConfigPath),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.String("health_refresh", cfg.HealthRefresh),
		zap.Bool("tracing_enabled", cfg.TracingEnabled),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
	)

	// --- Tracing ---
	shutdown := observability.NoopTracer()
	if cfg.TracingEnabled {
		var err error
		shutdown, err = observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Backends ---
	file, err := config.LoadFile(cfg.ConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("backends file not found, using local ollama defaults", zap.String("path", cfg.ConfigPath))
		file = config.DefaultBackends()
	case err != nil:
		logger.Fatal("failed to load backends file", zap.Error(err))
	}

	clientCfgs, err := file.ClientConfigs(cfg.CacheTTL)
	if err != nil {
		logger.Fatal("invalid backend configuration", zap.Error(err))
	}

	// One transport pool shared by every backend so endpoints with the same
	// TLS policy reuse connections.
	adapters := provider.NewAdapterFactory(provider.NewClientPool())

	orchestrators := make([]*service.Orchestrator, 0, len(clientCfgs))
	for _, cc := range clientCfgs {
		o, err := service.NewOrchestrator(cc,
			service.WithAdapterFactory(adapters),
			service.WithMetrics(metrics),
			service.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to build backend", zap.String("backend", cc.Name), zap.Error(err))
		}
		logger.Info("backend ready",
			zap.String("backend", cc.Name),
			zap.String("kind", string(cc.Kind)),
			zap.String("model", cc.Model),
			zap.Int("endpoints", len(cc.Endpoints)),
			zap.Bool("caching", cc.EnableCaching),
			zap.Bool("fallback", cc.EnableFallback),
		)
		orchestrators = append(orchestrators, o)
	}

	gw, err := service.NewGateway(orchestrators, file.Default(), metrics, logger)
	if err != nil {
		logger.Fatal("failed to build gateway", zap.Error(err))
	}

	// --- Health refresh ---
	scheduler, err := service.NewHealthScheduler(gw, cfg.HealthRefresh, 30*time.Second, logger)
	if err != nil {
		logger.Fatal("failed to schedule health refresh", zap.Error(err))
	}
	scheduler.RunOnce()
	scheduler.Start()
	defer scheduler.Stop()

	// --- Router ---
	router := handler.NewRouter(gw, metrics, logger, handler.RouterConfig{
		JWTSecret: []byte(cfg.JWTSecret),
		Timeout:   cfg.HTTPTimeout,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port), zap.String("default_backend", gw.Default()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
