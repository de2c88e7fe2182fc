package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/api"
	"github.com/ayo6706/concert-ticketing/internal/api/handler"
	"github.com/ayo6706/concert-ticketing/internal/api/middleware"
	"github.com/ayo6706/concert-ticketing/internal/cache"
	"github.com/ayo6706/concert-ticketing/internal/config"
	"github.com/ayo6706/concert-ticketing/internal/db"
	"github.com/ayo6706/concert-ticketing/internal/gateway"
	"github.com/ayo6706/concert-ticketing/internal/observability"
	"github.com/ayo6706/concert-ticketing/internal/repository"
	"github.com/ayo6706/concert-ticketing/internal/repository/memory"
	"github.com/ayo6706/concert-ticketing/internal/ticketnumber"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retry := repository.RetryPolicy{
		MaxAttempts:   cfg.TxMaxAttempts,
		InitialDelay:  cfg.TxInitialBackoff,
		MaxDelay:      cfg.TxMaxBackoff,
		BackoffFactor: 2,
	}

	var (
		store  repository.TxStore
		pinger handler.Pinger
		rdb    redis.Cmdable
		cstore cache.Store
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store = memory.NewStore().WithRetryPolicy(retry)
		cstore = cache.NewMemoryStore()
		logger.Warn("using in-memory storage; data is lost on restart")
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		pgStore := repository.NewStore(pool).WithRetryPolicy(retry)
		store, pinger = pgStore, pgStore

		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			pgStore.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		rdb = redisClient
		cstore = cache.NewRedisStore(redisClient)
	}

	repo := repository.NewConcertRepository(store, cstore, ticketnumber.NewUUIDGenerator()).
		WithCacheTTL(cfg.UpcomingCacheTTL)
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("close repository failed", zap.Error(err))
		}
	}()

	gw := gateway.NewMockGateway().WithFailureRate(cfg.GatewayFailureRate)
	if !cfg.GatewayLatency {
		gw.WithoutLatency()
	}

	router := api.NewRouter(cfg, logger, pinger, rdb, repo, gw)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageDriver))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
