package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anhtuan9622/flippl/internal/auth"
	"github.com/anhtuan9622/flippl/internal/config"
	"github.com/anhtuan9622/flippl/internal/database"
	"github.com/anhtuan9622/flippl/internal/journal"
	"github.com/anhtuan9622/flippl/internal/logger"
	"github.com/anhtuan9622/flippl/internal/mailer"
	"github.com/anhtuan9622/flippl/internal/maintenance"
	"github.com/anhtuan9622/flippl/internal/realtime"
	"github.com/anhtuan9622/flippl/internal/server"
	"github.com/anhtuan9622/flippl/internal/share"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Realtime fan-out over redis pub/sub
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	broker := realtime.NewBroker(redisClient, log)
	hub := realtime.NewHub(broker, log)

	// Services
	jwt := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.AccessTTL}
	mailClient := mailer.NewClient(&cfg.Mailer, log)
	authSvc := auth.NewService(db, log, jwt, mailClient, broker,
		cfg.Auth.RefreshTTL, cfg.Auth.ActionTokenTTL, cfg.Share.BaseURL)
	journalSvc := journal.NewService(db, log, broker)
	shareSvc := share.NewService(db, log, cfg.Share.BaseURL)

	// Background cleanup of expired one-time tokens
	runner := maintenance.New(log, ctx)
	if _, err := runner.SchedulePurge(cfg.Maintenance.PurgeSpec, authSvc); err != nil {
		log.Fatal("Failed to schedule token purge", zap.Error(err))
	}
	runner.Start()
	defer runner.Stop()

	// HTTP server
	api := server.New(&cfg, log, jwt, authSvc, journalSvc, shareSvc, hub)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.Router(),
	}

	go func() {
		log.Info("Starting API server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		log.Error("Redis close failed", zap.Error(err))
	}
	log.Info("Server stopped")
}
