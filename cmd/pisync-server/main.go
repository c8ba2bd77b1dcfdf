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

	"github.com/pisync/server/internal/config"
	"github.com/pisync/server/internal/database"
	"github.com/pisync/server/internal/repository"
	"github.com/pisync/server/internal/seed"
	"github.com/pisync/server/internal/server"
	"github.com/pisync/server/internal/service"
	"github.com/pisync/server/internal/watchdog"
	"github.com/pisync/server/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	log.Println("Database connected successfully")

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db, "migrations"); err != nil {
		return err
	}
	log.Println("Migrations completed successfully")

	// Initialize repositories
	deviceRepo := repository.NewDeviceRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Seed demo data when requested
	if cfg.SeedDemoData {
		if err := seed.Run(context.Background(), db); err != nil {
			return err
		}
	}

	// Initialize the orchestrator and its completion worker pool. The pool
	// delivers results back into the orchestrator's completion path.
	var syncService *service.SyncService
	link := worker.NewSimulatedLink(time.Duration(cfg.SyncLatency)*time.Second, cfg.SyncSuccessRate)
	pool := worker.NewPool(link, func(ctx context.Context, job worker.Job, result worker.Result) error {
		return syncService.HandleCompletion(ctx, job, result)
	}, cfg.MaxRetries, time.Second)
	syncService = service.NewSyncService(deviceRepo, syncLogRepo, pool)

	deviceService := service.NewDeviceService(deviceRepo)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)

	// Initialize the watchdog that reaps attempts stuck in PENDING
	dog := watchdog.New(
		syncLogRepo,
		syncService,
		time.Duration(cfg.WatchdogInterval)*time.Second,
		time.Duration(cfg.MaxPendingAge)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchdogErr := make(chan error, 1)
	go func() {
		watchdogErr <- dog.Start(ctx)
	}()

	// Start HTTP server
	handlers := server.NewHandlers(syncService, deviceService, authService)
	router := server.NewRouter(handlers, authService)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	// Drain in-flight sync attempts before stopping the watchdog
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Printf("Worker pool did not drain cleanly: %v", err)
	}

	cancel()
	if err := <-watchdogErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Watchdog error: %v", err)
	}

	log.Println("Application stopped")
	return nil
}
