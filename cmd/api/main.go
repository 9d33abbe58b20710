// Package main is the entry point for the Veridex ranking API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/solivane/veridex/internal/api"
	"github.com/solivane/veridex/internal/cache"
	"github.com/solivane/veridex/internal/config"
	"github.com/solivane/veridex/internal/engine"
	"github.com/solivane/veridex/internal/factor"
	"github.com/solivane/veridex/internal/health"
	"github.com/solivane/veridex/internal/jobs"
	"github.com/solivane/veridex/internal/middleware"
	"github.com/solivane/veridex/internal/store"
	"github.com/solivane/veridex/internal/tracing"
)

const serviceName = "veridex-api"

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Veridex Ranking API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	logger.Info("configuration loaded")
	for key, val := range cfg.LogSummary() {
		logger.Debug("config", key, val)
	}

	// Tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.SamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	pingCancel()

	// Location tree, loaded once at startup.
	treeCtx, treeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	tree, err := store.LoadLocationTree(treeCtx, db)
	treeCancel()
	if err != nil {
		logger.Error("failed to load location tree", "error", err)
		os.Exit(1)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()

	engineMetrics := engine.NewMetrics()
	cacheMetrics := cache.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	for _, m := range []interface {
		Register(prometheus.Registerer) error
	}{engineMetrics, cacheMetrics, jobMetrics, httpMetrics} {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Result cache: Redis when configured, no-op otherwise.
	var resultCache cache.ResultCache = cache.NoopCache{}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		resultCache = cache.NewRedisCache(redisClient, cache.RedisCacheConfig{
			TTL:     cfg.CacheTTL,
			Logger:  logger,
			Metrics: cacheMetrics,
		})
	} else {
		logger.Info("REDIS_ADDR not set; ranking results will not be cached")
	}

	st := store.NewPostgresStore(db, logger)
	eng := engine.New(tree, factor.Params{
		ActivityCap: float64(cfg.ActivityCapEvents),
		MaxPlanRank: float64(cfg.MaxPlanRank),
	}, engine.WithMetrics(engineMetrics))

	// Background recompute job
	tracker := jobs.NewDirtyTracker()
	job := jobs.NewRecomputeJob(jobs.RecomputeJobConfig{
		Interval: cfg.RecomputeInterval,
		Timeout:  cfg.RecomputeTimeout,
		Logger:   logger,
		Metrics:  jobMetrics,
	}, tracker, tree, st, eng, resultCache)
	job.Start(context.Background())
	defer job.Stop()

	// Handlers
	rankingHandlers := api.NewRankingHandlers(tree, st, eng, resultCache, tracker)
	healthConfig := api.HealthHandlersConfig{
		DBChecker: health.NewDBChecker(db),
	}
	if redisClient != nil {
		healthConfig.CacheChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("/rankings", rankingHandlers.GetRankings)
	mux.HandleFunc("/rankings/refresh", rankingHandlers.RefreshRankings)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Previews recompute inline and bypass the cache, so they get a
	// tighter limit than the rest of the API.
	rateStore := middleware.NewInMemoryRateLimitStore()
	previewLimiter := middleware.RateLimiter(rateStore, middleware.DefaultPreviewLimit(), middleware.IPKeyFunc(), httpMetrics)
	mux.Handle("/rankings/preview", previewLimiter(http.HandlerFunc(rankingHandlers.PreviewRankings)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"veridex-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware chain: RequestID -> Tracing -> Logging -> Metrics -> RateLimit -> CORS
	var handler http.Handler = mux
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		MaxAge:         600,
	})(handler)
	handler = middleware.RateLimiter(rateStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	// Periodic cleanup of expired rate limit buckets.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupDone:
				return
			case <-ticker.C:
				rateStore.Cleanup()
			}
		}
	}()
	defer close(cleanupDone)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
