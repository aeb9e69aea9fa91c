package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Rakib-codee/harmonycare-backend/config"
	"github.com/Rakib-codee/harmonycare-backend/internal/api"
	"github.com/Rakib-codee/harmonycare-backend/internal/db"
	"github.com/Rakib-codee/harmonycare-backend/internal/dispatch"
	"github.com/Rakib-codee/harmonycare-backend/internal/emergency"
	"github.com/Rakib-codee/harmonycare-backend/internal/notification"
	"github.com/Rakib-codee/harmonycare-backend/internal/retention"
	"github.com/Rakib-codee/harmonycare-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "harmonycare ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Pushes fail per-token without keys; the rest of the service still works.
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys are not configured; push notifications will be rejected by push services")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	devices, closeDevices, err := openDeviceDirectory(ctx, cfg.DeviceDirectory, gormDB)
	if err != nil {
		logger.Fatalf("failed to open device directory: %v", err)
	}
	defer closeDevices()
	logger.Printf("device directory backend: %s", cfg.DeviceDirectory.Backend)

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, &webpushOptions)
	pool.Start(ctx)

	svc := emergency.NewService(
		store.NewGormEmergencyStore(gormDB),
		devices,
		store.NewGormAuditLog(gormDB),
		pool,
		emergency.Options{
			Selector:       dispatch.NewSelector(cfg.Dispatch.Freshness, cfg.Dispatch.MaxRecipients),
			CandidateLimit: cfg.Dispatch.CandidateLimit,
		},
	)

	sweeper := retention.NewService(svc, cfg.Retention.DefaultDays, cfg.Retention.Interval, cfg.Retention.Enabled)
	go sweeper.Run(ctx)

	// Initialize router
	handler := api.NewHandler(svc, devices, &webpushOptions, cfg.Retention.DefaultDays)
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimit:   rate.Limit(cfg.Server.RateLimitPerSec),
		RateBurst:   cfg.Server.RateLimitBurst,
		CacheTTL:    time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		AdminSecret: cfg.Retention.AdminSecret,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
}

// openDeviceDirectory returns the configured directory and a func releasing its resources.
func openDeviceDirectory(ctx context.Context, cfg config.DeviceDirectoryConfig, gormDB *gorm.DB) (store.DeviceDirectory, func(), error) {
	switch cfg.Backend {
	case "", "gorm":
		return store.NewGormDeviceDirectory(gormDB), func() {}, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return store.NewRedisDeviceDirectory(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown device directory backend %q", cfg.Backend)
	}
}
