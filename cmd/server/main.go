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

	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/audit"
	"github.com/raaihank/text-pseudonymizer/internal/cache"
	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/recognizer"
	"github.com/raaihank/text-pseudonymizer/internal/server"
)

var (
	version = server.Version
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the server at this address (e.g. localhost:8080) and exit")
		watch       = flag.Bool("watch", true, "Reload masking settings when the configuration file changes")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("text-pseudonymizer %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting text-pseudonymizer",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	rec, err := recognizer.FromConfig(cfg.Recognizer, log)
	if err != nil {
		log.Fatal("Failed to create recognizer", zap.Error(err))
	}
	deps := server.Dependencies{Recognizer: rec}

	if cfg.Audit.Enabled {
		store, err := audit.NewStore(&audit.Config{
			DatabaseURL:     cfg.Audit.DatabaseURL,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		}, log)
		if err != nil {
			log.Fatal("Failed to open audit store", zap.Error(err))
		}
		defer store.Close()
		deps.Reports = store
	}

	if cfg.Cache.Enabled {
		sessions, err := cache.NewSessionCache(&cache.Config{
			RedisURL:     cfg.Cache.RedisURL,
			PoolSize:     cfg.Cache.PoolSize,
			MinIdleConns: cfg.Cache.MinIdleConns,
			TTL:          cfg.Cache.TTL,
			KeyPrefix:    cfg.Cache.KeyPrefix,
		}, log)
		if err != nil {
			log.Fatal("Failed to connect session cache", zap.Error(err))
		}
		defer sessions.Close()
		deps.Snapshots = sessions
	}

	srv, err := server.New(cfg, log, deps)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if *watch && *configPath != "" {
		err := config.Watch(*configPath, func(updated *config.Config) {
			srv.UpdatePseudonymization(updated.Pseudonymization)
		}, func(err error) {
			log.Warn("Ignoring invalid configuration change", zap.Error(err))
		})
		if err != nil {
			log.Warn("Configuration watch disabled", zap.Error(err))
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			return
		}

		log.Info("Server shutdown complete")
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}
	return logger.New(loggerConfig)
}

// performHealthCheck performs a health check against a running server
func performHealthCheck(addr string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
