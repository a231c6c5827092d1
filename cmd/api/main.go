package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/evidence"
	"geoattend/internal/geofence"
	"geoattend/internal/httpapi"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/logger"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/store"
	"geoattend/internal/subject"
	"geoattend/internal/verification"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	logg, closer := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Service: "api"})
	defer closer.Close()

	if err := runHTTP(cfg, logg); err != nil {
		logg.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

// backends holds the stores selected by STORE_BACKEND.
type backends struct {
	records  attendance.RecordStore
	subjects subject.Store
	audit    attendance.AuditSink
	db       *store.DB
}

func openBackends(ctx context.Context, cfg config.App, logg *slog.Logger) (backends, error) {
	if cfg.StoreBackend == "memory" {
		logg.Warn("using in-memory stores; data is lost on restart")
		return backends{
			records:  attendance.NewInMemoryStore(),
			subjects: subject.NewInMemoryStore(),
			audit:    attendance.LogAudit{Logger: logg},
		}, nil
	}
	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return backends{}, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		return backends{}, fmt.Errorf("migrate: %w", err)
	}
	return backends{
		records:  attendance.NewRepository(db.Client),
		subjects: subject.NewRepository(db.Client),
		audit:    attendance.NewAuditRepository(db.Client),
		db:       db,
	}, nil
}

func newUploader(cfg config.Evidence, logg *slog.Logger) evidence.Uploader {
	switch cfg.Backend {
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			logg.Warn("cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
			return nil
		}
		logg.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName)
		return evidence.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	case "imgbb":
		return evidence.NewImgBB(cfg.ImgBBAPIKey, cfg.ImgBBEndpoint)
	default:
		return nil
	}
}

// needsRedis reports whether any configured backend talks to Redis.
func needsRedis(cfg config.App) bool {
	return cfg.QueueBackend == "redis" || cfg.RateLimitStore == "redis"
}

// healthChecks lists only the dependencies this process actually uses.
func healthChecks(redisClient *store.Redis, db *store.DB) []httpapi.HealthCheck {
	var checks []httpapi.HealthCheck
	if redisClient != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: redisClient.Healthy})
	}
	if db != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "db", Check: db.Healthy})
	}
	return checks
}

func runHTTP(cfg config.App, logg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Reset(); err != nil {
			logg.Warn("db close failed", "error", err)
		}
	}()

	var redisClient *store.Redis
	if needsRedis(cfg) {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(256)
		q = mem
		// No worker process can reach an in-memory queue; drain it here.
		go func() {
			if err := attendance.ConsumeEvents(ctx, mem, b.audit, logg); err != nil {
				logg.Error("event consumer stopped", "error", err)
			}
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	verifier, err := verification.New(cfg.Verification.Mode, cfg.Verification.Secret)
	if err != nil {
		return err
	}

	subjects := subject.NewService(b.subjects, b.records, subject.WithLogger(logg))
	if err := subjects.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	evidenceStore := evidence.NewStore(newUploader(cfg.Evidence, logg),
		evidence.WithTimeout(cfg.Evidence.Timeout),
		evidence.WithLogger(logg),
		evidence.WithMetrics(m),
	)
	fence := geofence.Fence{
		Center:       geofence.Coordinate{Latitude: cfg.Office.Latitude, Longitude: cfg.Office.Longitude},
		RadiusMeters: cfg.Office.RadiusMeters,
	}
	att := attendance.NewService(b.records, subjects, fence,
		attendance.WithVerifier(verifier),
		attendance.WithEvidence(evidenceStore),
		attendance.WithEvents(q),
		attendance.WithMetrics(m),
		attendance.WithLogger(logg),
		attendance.WithConditionalWrites(cfg.ConditionalWrites),
	)

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitStore == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	}

	signer := auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	r := httpapi.NewRouter(httpapi.NewHandler(att, subjects, signer, logg), httpapi.RouterConfig{
		Limiter:     limiter,
		CORSOrigins: cfg.CORSOrigins,
		Health:      healthChecks(redisClient, b.db),
		Metrics:     promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("starting server", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logg.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Warn("server forced shutdown", "error", err)
	}

	logg.Info("server exited")
	return nil
}
