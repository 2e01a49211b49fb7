package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/app"
	"github.com/andrearcaina/uofthacks-2026/internal/config"
	"github.com/andrearcaina/uofthacks-2026/internal/logging"
	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
	"github.com/andrearcaina/uofthacks-2026/internal/session"
	"github.com/andrearcaina/uofthacks-2026/internal/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	tp, shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  "panel-gateway",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Insecure:     cfg.OTLPInsecure,
		SampleRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	store, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("session store setup failed", zap.Error(err))
	}
	defer store.Close()

	gw := proxy.NewGateway(cfg.InferenceURL, cfg.InferenceName, cfg.InferenceTimeout,
		proxy.WithLogger(logger),
		proxy.WithTracerProvider(tp),
	)
	service := app.New(cfg, store, gw, logger)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Upstream inference calls may take up to InferenceTimeout.
		WriteTimeout: cfg.InferenceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("panel gateway listening",
			zap.String("addr", cfg.Addr),
			zap.String("inference", cfg.InferenceURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func openSessionStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.Store, error) {
	sealer, err := session.NewSealer(cfg.SessionKey)
	if err != nil {
		return nil, err
	}
	if sealer == nil {
		logger.Warn("SESSION_ENCRYPTION_KEY unset; access tokens are stored in plaintext")
	}

	switch cfg.SessionBackend {
	case "redis":
		logger.Info("using redis for tenant sessions")
		return session.NewRedisStore(cfg.RedisURL, sealer)
	case "postgres":
		logger.Info("using postgres for tenant sessions")
		db, err := session.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := session.NewPostgresStore(db, sealer)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
}
