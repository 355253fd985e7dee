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

	"github.com/lexops/privguard/internal/audit"
	"github.com/lexops/privguard/internal/cache"
	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"github.com/lexops/privguard/internal/privacy"
	"github.com/lexops/privguard/internal/server"
	"github.com/lexops/privguard/internal/session"
	"github.com/lexops/privguard/internal/vault"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("privguard %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting privguard",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	detector := privacy.New(cfg.Privacy, log.WithComponent("privacy"))

	store, err := openAuditStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open audit store", zap.Error(err))
	}
	recorder := audit.NewRecorder(store, log.WithComponent("audit"))
	defer recorder.Close()

	var detCache *cache.DetectionCache
	if cfg.Cache.Enabled {
		detCache, err = cache.NewDetectionCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache"))
		if err != nil {
			// Detection works without the cache, so a missing Redis is a
			// degradation rather than a startup failure.
			log.Warn("Detection cache unavailable, continuing without it", zap.Error(err))
			detCache = nil
		} else {
			defer detCache.Close()
		}
	}

	sessions := session.NewManager(detector, recorder, cfg.Session, log.WithComponent("session"))
	go sessions.Run()
	defer sessions.Stop()

	srv, err := server.New(cfg, log, detector, sessions, recorder, detCache)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
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
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// openAuditStore selects the audit backend. The file backend goes through
// the vault when at-rest encryption is enabled.
func openAuditStore(cfg *config.Config, log *logger.Logger) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case "postgres":
		return audit.NewPostgresStore(audit.PostgresConfig{
			DatabaseURL:  cfg.Audit.DatabaseURL,
			MaxOpenConns: cfg.Audit.MaxOpenConns,
			MaxIdleConns: cfg.Audit.MaxIdleConns,
		}, log.WithComponent("audit"))
	case "file", "":
		if cfg.Vault.Enabled {
			keys := vault.NewKeyManager(cfg.Vault, log.WithComponent("vault"))
			blob := vault.NewStore(keys, cfg.Vault, log.WithComponent("vault"))
			return audit.NewVaultStore(blob, cfg.Audit.FilePath)
		}
		return audit.NewFileStore(cfg.Audit.FilePath)
	default:
		return nil, fmt.Errorf("unknown audit backend: %s", cfg.Audit.Backend)
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8085/health")
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
	os.Exit(0)
}
