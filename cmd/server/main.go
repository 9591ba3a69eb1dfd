/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the booking/course bridge server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load BRIDGE_* environment, then apply command-line flags on top
  2. Build the structured logger
  3. Initialize SQLite store
  4. Bootstrap settings from a YAML file, if one is given
  5. Configure HTTP router and start the server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port      HTTP server port                (BRIDGE_PORT, default 8080)
  -db        SQLite database path            (BRIDGE_DB_PATH, default bridge.db)
             Use ":memory:" for in-memory database
  -log       Log mode: dev or prod           (BRIDGE_LOG_MODE, default dev)
  -settings  YAML settings bootstrap file    (BRIDGE_SETTINGS_FILE)

  BRIDGE_ALLOWED_ORIGINS: comma-separated CORS origins for the operator UI.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/bridge.db" -settings=./settings.yaml
  BRIDGE_LOG_MODE=prod ./server -port=3000

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - factory/settings.go: Settings document format
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/lesson-bridge/api"
	"github.com/warp/lesson-bridge/config"
	"github.com/warp/lesson-bridge/factory"
	"github.com/warp/lesson-bridge/logger"
	"github.com/warp/lesson-bridge/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.LogMode, "log", cfg.LogMode, "Log mode (dev or prod)")
	flag.StringVar(&cfg.SettingsFile, "settings", cfg.SettingsFile, "YAML settings bootstrap file")
	flag.Parse()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", "path", cfg.DBPath, "error", err)
	}
	defer store.Close()

	if cfg.SettingsFile != "" {
		if err := bootstrapSettings(context.Background(), store, cfg.SettingsFile); err != nil {
			log.Fatal("failed to load settings file", "path", cfg.SettingsFile, "error", err)
		}
		log.Info("settings loaded from file", "path", cfg.SettingsFile)
	}

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler, cfg.Origins())

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", "addr", server.Addr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return
	}

	log.Info("server stopped")
}

// bootstrapSettings replaces the stored settings with the YAML file's.
func bootstrapSettings(ctx context.Context, store *sqlite.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	settings, err := factory.NewSettingsFactory().ParseYAML(data)
	if err != nil {
		return err
	}
	return store.SaveConfig(ctx, settings)
}
