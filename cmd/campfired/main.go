package main

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/campfirehq/campfire/pkg/access"
	"github.com/campfirehq/campfire/pkg/audit"
	"github.com/campfirehq/campfire/pkg/community"
	"github.com/campfirehq/campfire/pkg/config"
	"github.com/campfirehq/campfire/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	logger.WithField("port", cfg.Server.Port).Info("Starting campfired")

	db, err := sql.Open("postgres", cfg.Database.PostgresURL)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		os.Exit(1)
	}

	sink, err := audit.NewDBSink(db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit sink")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var store community.Store = community.NewPostgresStore(db)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		cached, err := community.NewCachedStore(store, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.L1CacheSize)
		if err != nil {
			// Cache is an optimization; serve from Postgres when Redis is down.
			logger.WithError(err).Warn("Redis unavailable, running without cache")
		} else {
			if metrics != nil {
				cached.SetMetrics(metrics)
			}
			store = cached
			redisClient = cached.Redis()
			defer cached.Close()
		}
	}

	evaluator := access.NewEvaluator(store, logger)
	validator := access.NewValidator(evaluator, sink, logger, metrics)

	router := mux.NewRouter()
	router.Use(observability.RecoveryMiddleware(logger))
	router.Use(access.IdentityMiddleware(logger))
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
		observability.RegisterMetricsEndpoint(router, registry)

		go func() {
			defer observability.RecoverPanic(logger, "db stats ticker")
			for range time.Tick(15 * time.Second) {
				metrics.UpdateDBStats(db)
			}
		}()
	}

	accessHandlers := access.NewHandlers(evaluator, validator)
	accessHandlers.RegisterRoutes(router)

	auditHandlers := audit.NewHandlers(sink)
	auditHandlers.RegisterRoutes(router)

	healthChecker := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(router, healthChecker)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}
