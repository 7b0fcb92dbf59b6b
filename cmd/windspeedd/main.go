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

	"github.com/joho/godotenv"

	"wind-speed-service/config"
	"wind-speed-service/internal/api"
	"wind-speed-service/internal/browser"
	"wind-speed-service/internal/observability"
	"wind-speed-service/internal/scraper"
)

const defaultConfigPath = "./config/config.yaml"

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "wind-speed-service ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("failed to load .env: %v", err)
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			configPath = defaultConfigPath
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	if configPath == "" {
		logger.Println("no configuration file found, using defaults")
	} else {
		logger.Printf("configuration loaded successfully from %s", configPath)
	}

	// Start the browser driver; each lookup launches its own browser on it.
	pw, err := browser.NewPlaywright(browser.Options{
		Headless:       !cfg.Scraper.Headful,
		ExecutablePath: cfg.Scraper.ExecutablePath,
		Args:           cfg.Scraper.BrowserArgs,
		ViewportWidth:  cfg.Scraper.ViewportWidth,
		ViewportHeight: cfg.Scraper.ViewportHeight,
		InstallDriver:  cfg.Scraper.ShouldInstallDriver(),
	})
	if err != nil {
		logger.Fatalf("failed to start browser driver: %v", err)
	}
	logger.Println("browser driver started")

	scraperSvc := scraper.NewService(cfg.Scraper, pw, observability.NewMetrics())

	// Initialize router
	router := api.NewRouter(cfg.Server, scraperSvc)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// In-flight lookups get the configured grace period.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	if err := pw.Close(); err != nil {
		logger.Printf("failed to stop browser driver: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
