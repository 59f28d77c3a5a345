package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"alcyxob/media-service/internal/api"
	"alcyxob/media-service/internal/config"
	"alcyxob/media-service/internal/logger"
	"alcyxob/media-service/internal/metrics"
	"alcyxob/media-service/internal/ratelimit"
	"alcyxob/media-service/internal/repository"
	"alcyxob/media-service/internal/repository/memory"
	"alcyxob/media-service/internal/repository/mongo"
	"alcyxob/media-service/internal/repository/mysql"
	"alcyxob/media-service/internal/service"
	"alcyxob/media-service/internal/storage"
	"alcyxob/media-service/internal/transcode"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title Media Upload API
// @version 1.0
// @description Upload, validate and serve images and videos.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	// --- Logging ---
	logr, err := logger.New(cfg.IsProduction(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr.Infow("Starting media service", "env", cfg.App.Env, "storage", cfg.Storage.Driver, "database", cfg.Database.Driver)

	ctx := context.Background()

	// --- Storage ---
	driver, err := storage.NewDriver(ctx, cfg, logr)
	if err != nil {
		logr.Fatalw("Could not initialize storage driver", "driver", cfg.Storage.Driver, "error", err)
	}

	// --- Database ---
	repo, closeRepo, err := openRepository(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatalw("Could not initialize database", "driver", cfg.Database.Driver, "error", err)
	}
	defer closeRepo()

	// --- Rate limiting ---
	store, closeStore, err := openRateLimitStore(ctx, cfg.RateLimit)
	if err != nil {
		logr.Fatalw("Could not initialize rate limit store", "store", cfg.RateLimit.Store, "error", err)
	}
	defer closeStore()
	limiter := ratelimit.New(store, ratelimit.DefaultRules, cfg.IsProduction())
	if !limiter.Enabled() {
		logr.Infow("Rate limiting disabled outside production")
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		logr.Fatalw("Could not register metrics", "error", err)
	}

	// --- Services ---
	pipeline := service.NewPipeline(driver, cfg.Upload.Dir, cfg.ImageProcessing.Enabled, transcode.New(), recorder, logr)
	uploadService := service.NewUploadService(pipeline)
	privateService := service.NewPrivateMediaService(pipeline, repo)

	// --- Gin Engine ---
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(api.RequestLogger(logr), gin.Recovery())

	api.SetupRoutes(router, api.RouteDeps{
		JWTSecret:      cfg.JWT.Secret,
		UploadDir:      cfg.Upload.Dir,
		Limiter:        limiter,
		UploadService:  uploadService,
		PrivateService: privateService,
		Metrics:        recorder,
		Gatherer:       registry,
		Log:            logr,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Large multipart batches take a while on slow links.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logr.Infow("Server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatalw("ListenAndServe error", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Infow("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logr.Errorw("Server forced to shutdown", "error", err)
	}
	logr.Infow("Server exiting.")
}

// openRepository connects the configured database and returns the private
// upload repository with its close function.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, logr *zap.SugaredLogger) (repository.PrivateUploadRepository, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "mongo", "mongodb":
		client, err := mongo.Connect(ctx, cfg.URI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.Name)

		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := mongo.EnsurePrivateUploadIndexes(indexCtx, mongo.PrivateUploadCollection(db)); err != nil {
			logr.Warnw("Could not ensure private upload indexes", "error", err)
		}

		closeFn := func() {
			if err := mongo.Disconnect(client); err != nil {
				logr.Errorw("Failed to disconnect MongoDB", "error", err)
			}
		}
		return mongo.NewMongoPrivateUploadRepository(db), closeFn, nil

	case "mysql":
		db, err := mysql.Open(ctx, cfg.URI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				logr.Errorw("Failed to close MySQL", "error", err)
			}
		}
		return mysql.NewPrivateUploadRepository(db), closeFn, nil

	case "memory":
		logr.Warnw("Private uploads are kept in memory and lost on restart")
		return memory.NewPrivateUploadRepository(), func() {}, nil

	default:
		return nil, nil, repository.ErrUnknownDriver
	}
}

// openRateLimitStore builds the counter store shared by every rate class.
func openRateLimitStore(ctx context.Context, cfg config.RateLimitConfig) (ratelimit.Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", "memory":
		return ratelimit.NewMemoryStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		return ratelimit.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, errors.New("unknown rate limit store: " + cfg.Store)
	}
}
