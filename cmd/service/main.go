package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-insights/internal/auth"
	"github.com/kjstillabower/climate-insights/internal/cache"
	"github.com/kjstillabower/climate-insights/internal/config"
	httphandler "github.com/kjstillabower/climate-insights/internal/http"
	"github.com/kjstillabower/climate-insights/internal/lifecycle"
	"github.com/kjstillabower/climate-insights/internal/observability"
	"github.com/kjstillabower/climate-insights/internal/store"
	"github.com/kjstillabower/climate-insights/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("config loaded", zap.Stringer("config", cfg))

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	clock := clockwork.NewRealClock()
	state := lifecycle.New(clock)
	tracker := traffic.New(clock, cfg.DegradedWindow)
	observability.RegisterTrafficGauges(tracker.RequestCount, tracker.ErrorCount)

	healthConfig := &httphandler.HealthConfig{
		Lifecycle:        state,
		Tracker:          tracker,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}

	var principalCache cache.Cache
	switch cfg.CacheBackend {
	case config.CacheMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		principalCache = mc
		healthConfig.CachePing = func(context.Context) error { return mc.Ping() }
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTimeout)
		if err != nil {
			logger.Fatal("redis cache", zap.Error(err))
		}
		principalCache = rc
		healthConfig.CachePing = rc.Ping
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	default:
		principalCache = cache.NewInMemoryCacheWithClock(clock)
		logger.Info("cache backend: in_memory")
	}

	identity, err := auth.NewSupabaseClient(cfg.IdentityURL, cfg.IdentityAPIKey, cfg.IdentityTimeout, auth.BreakerSettings{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Timeout:          cfg.BreakerTimeout,
	})
	if err != nil {
		logger.Fatal("identity client", zap.Error(err))
	}
	healthConfig.IdentityOpen = func() bool { return identity.BreakerState() == gobreaker.StateOpen }
	gate := auth.NewGate(identity, principalCache, cfg.CacheBackend, cfg.AuthCacheTTL, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httphandler.NewHandler(st, gate, healthConfig, logger, httphandler.Options{
		DebugErrors:   cfg.DebugErrors,
		MaxPageSize:   cfg.MaxPageSize,
		MaxExportRows: cfg.MaxExportRows,
	})
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		BasePath:       cfg.BasePath,
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("base_path", cfg.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered", zap.Duration("uptime", state.Uptime()))
	state.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger, principalCache, st); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openStore connects the configured backend and wraps it with store metrics.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn("store backend: memory; data is lost on exit")
		return store.Instrument(store.NewMemory()), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseMigrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema applied")
	}
	logger.Info("store backend: postgres", zap.Int32("max_conns", cfg.DatabaseMaxConns))
	return store.Instrument(pg), nil
}
