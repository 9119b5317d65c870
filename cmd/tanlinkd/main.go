package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tanlink/tanlink"
	"github.com/tanlink/tanlink/internal/rate"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("tanlinkd failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := tanlink.ConfigFromEnv()
	if err != nil {
		return err
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer func() { _ = redisClient.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := tanlink.NewMetrics(registry)

	builder := tanlink.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithMetrics(metrics).
		WithLogger(logger)

	if os.Getenv("RATE_LIMIT_BACKEND") == "redis" {
		builder = builder.WithRateLimiter(rate.NewRedisLimiter(redisClient, cfg.Session.RedisPrefix, rate.Config{
			Window:    cfg.RateLimit.Window,
			Threshold: cfg.RateLimit.Threshold,
			Lockout:   cfg.RateLimit.Lockout,
		}))
	}

	var auditFile *os.File
	if path := os.Getenv("AUDIT_LOG"); path != "" {
		auditFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		defer func() { _ = auditFile.Close() }()
		builder = builder.WithAuditSink(tanlink.NewJSONAuditSink(auditFile))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := newServer(engine, logger)
	mux := srv.routes(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.accessLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", listenAddr), zap.String("redis", redisAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
