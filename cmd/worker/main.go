package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"geoattend/internal/attendance"
	"geoattend/internal/config"
	"geoattend/internal/logger"
	"geoattend/internal/queue"
	"geoattend/internal/store"
)

// Worker consumes attendance events and appends them to the audit trail.
func main() {
	cfg := config.Load()
	logg, closer := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Service: "worker"})
	defer closer.Close()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis; the in-memory queue is drained by the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink attendance.AuditSink = attendance.LogAudit{Logger: logg}
	if cfg.StoreBackend == "postgres" {
		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Error("db connect failed", "error", err)
			os.Exit(1)
		}
		defer store.Reset()
		if err := db.Migrate(ctx); err != nil {
			logg.Error("migrate failed", "error", err)
			os.Exit(1)
		}
		sink = attendance.NewAuditRepository(db.Client)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logg.Warn("redis not reachable yet; consumer will keep retrying", "addr", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)

	logg.Info("worker started, waiting for events", "queue", queue.DefaultKey)
	if err := attendance.ConsumeEvents(ctx, q, sink, logg); err != nil {
		logg.Error("queue consume failed", "error", err)
		os.Exit(1)
	}
	logg.Info("worker stopped")
}
