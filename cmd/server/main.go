// Package main is the entry point for the campuslink calendar server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campuslink/backend/internal/api"
	"github.com/campuslink/backend/internal/calendar"
	"github.com/campuslink/backend/internal/config"
	"github.com/campuslink/backend/internal/storage"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to the YAML config file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := flag.String("data", "", "Data directory for the SQLite database (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting campuslink calendar server (version: %s)...", version)

	db, err := storage.NewDB(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	personalRepo := storage.NewPersonalEventRepository(db)
	appEventRepo := storage.NewAppEventRepository(db)
	subscriptionRepo := storage.NewSubscriptionRepository(db)

	loc := cfg.Location()
	calendarService := calendar.NewService(personalRepo, appEventRepo, calendar.NewICSParser(loc), loc)
	log.Printf("Bucketing calendar dates in %s", loc)

	fetcher := calendar.NewFetcher(cfg.FetchTimeoutDuration(), cfg.MaxImportBytes)
	syncService := calendar.NewSyncService(subscriptionRepo, calendarService, fetcher)

	scheduler := calendar.NewScheduler(syncService, subscriptionRepo, cfg.DefaultSyncIntervalMin)
	if err := scheduler.Start(context.Background()); err != nil {
		log.Printf("Warning: Failed to start subscription scheduler: %v", err)
	}

	router := api.NewRouter(db, api.Options{
		Calendar:               calendarService,
		SyncService:            syncService,
		Scheduler:              scheduler,
		MaxImportBytes:         cfg.MaxImportBytes,
		DefaultSyncIntervalMin: cfg.DefaultSyncIntervalMin,
	})

	// Subscription syncs run inside requests, so the write timeout covers a fetch.
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeoutDuration() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	if addr != "" && addr[0] != ':' {
		url = "http://" + addr + "/api/health"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}
