package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/campfirehq/campfire/pkg/audit"
)

var (
	dbURL         = flag.String("db-url", getEnv("CAMPFIRE_POSTGRES_URL", "postgres://localhost/campfire?sslmode=disable"), "PostgreSQL connection URL")
	schedule      = flag.String("schedule", getEnv("CAMPFIRE_AUDIT_CLEANUP_SCHEDULE", "5 0 * * *"), "Cron schedule for audit cleanup (default: 00:05 UTC)")
	retentionDays = flag.Int("retention-days", getEnvInt("CAMPFIRE_AUDIT_RETENTION_DAYS", 365), "Delete audit entries older than this many days")
	runOnce       = flag.Bool("run-once", false, "Run cleanup once and exit")
	logLevel      = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := setupLogger(*logLevel)

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Fatal("Failed to ping database")
	}

	sink, err := audit.NewDBSink(db)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize audit store")
	}

	if *runOnce {
		if err := runCleanup(sink, *retentionDays, logger); err != nil {
			logger.WithError(err).Fatal("Cleanup failed")
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		if err := runCleanup(sink, *retentionDays, logger); err != nil {
			logger.WithError(err).Error("Scheduled cleanup failed")
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to schedule cleanup")
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"schedule":       *schedule,
		"retention_days": *retentionDays,
	}).Info("Campfire janitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("Janitor stopped")
}

func runCleanup(store audit.Store, retentionDays int, logger *logrus.Logger) error {
	deleted, err := store.CleanupOldLogs(context.Background(), retentionDays)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"deleted":        deleted,
		"retention_days": retentionDays,
	}).Info("Audit cleanup completed")
	return nil
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
