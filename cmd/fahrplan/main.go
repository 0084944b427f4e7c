package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fahrplan/internal/cache"
	"fahrplan/internal/config"
	"fahrplan/internal/handler"
	"fahrplan/internal/hub"
	"fahrplan/internal/ingestor"
	"fahrplan/internal/metrics"
	"fahrplan/internal/middleware"
	"fahrplan/internal/publisher"
	"fahrplan/internal/store"
	"fahrplan/pkg/busboard"
	"fahrplan/pkg/rmv"
)

const (
	version = "1.0.0"

	// how long Redis and NATS may stay unreachable at startup
	connectWindow = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting fahrplan server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"poll_interval", cfg.PollInterval,
		"redis_enabled", cfg.RedisEnabled,
		"nats_enabled", cfg.NATSEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector(cfg.PollInterval)
	stats := handler.NewStats()
	scheduleStore := store.New()

	wsHub := hub.NewHub(logger)
	wsHub.OnClientCount(collector.SetWSClients)

	sinks := []ingestor.Sink{wsHub}

	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, connectWindow, logger)
		if err != nil {
			logger.Error("redis unavailable, continuing without cache", "error", err)
		} else {
			defer redisCache.Close()
			snapshots := cache.NewSnapshotCache(redisCache, cfg.CacheTTL, logger)
			if _, err := snapshots.Restore(ctx, scheduleStore); err != nil {
				logger.Warn("failed to restore cached schedule", "error", err)
			}
			sinks = append(sinks, snapshots)
		}
	}

	if cfg.NATSEnabled {
		nc, err := publisher.Connect(ctx, cfg.NATSURL, connectWindow, logger)
		if err != nil {
			logger.Error("nats unavailable, continuing without publisher", "error", err)
		} else {
			pub := publisher.NewNATSPublisher(nc, cfg.NATSSubjectPrefix, collector, logger)
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	railClient := rmv.New(cfg.RailFeedURL, cfg.Location, cfg.FetchTimeout)
	busClient := busboard.New(cfg.BusFeedURL, cfg.FetchTimeout)

	ing := ingestor.New(railClient, busClient, scheduleStore, cfg.PollInterval, logger,
		ingestor.WithSinks(sinks...),
		ingestor.WithMetrics(collector),
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger,
		middleware.OnBlocked(stats.IncRateLimitBlocked),
	)

	scheduleHandler := handler.NewScheduleHandler(scheduleStore)
	wsHandler := handler.NewWSHandler(wsHub, scheduleStore, stats, handler.OriginPatterns(cfg.AllowedOrigins), logger)
	healthHandler := handler.NewHealthHandler(ing, scheduleStore)
	statsHandler := handler.NewStatsHandler(scheduleStore, wsHub, stats, version)

	gzip := func(h http.HandlerFunc) http.Handler { return handler.GzipMiddleware(h) }

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", gzip(scheduleHandler.Board))
	mux.Handle("GET /v1/schedule", gzip(scheduleHandler.GetSchedule))
	mux.HandleFunc("GET /v1/ws", wsHandler.ServeWS)
	mux.Handle("GET /v1/stats", gzip(statsHandler.GetStats))

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)
	mux.Handle("GET /metrics", collector.Handler())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.CORSMiddleware(cfg.AllowedOrigins)(limiter.Middleware(stats.CountRequests(mux))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)

	go limiter.Run(ctx)

	go ing.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
