package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lexops/privguard/internal/audit"
	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/export"
	"github.com/lexops/privguard/internal/logger"
	"github.com/lexops/privguard/internal/vault"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		output     = flag.String("output", "", "Output file (.parquet, .csv, or .json)")
		action     = flag.String("action", "", "Filter by audit action")
		sessionRef = flag.String("session", "", "Filter by session reference")
		userRef    = flag.String("user", "", "Filter by user reference")
		since      = flag.String("since", "", "Only entries at or after this RFC3339 time")
		limit      = flag.Int("limit", 0, "Maximum entries to export (0 = recorder default)")
	)
	flag.Parse()

	if *output == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s --output report.parquet [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --output report.parquet --since 2026-01-01T00:00:00Z\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --output erasures.csv --action erasure --limit 1000\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filter := audit.Filter{
		Action:     audit.Action(*action),
		SessionRef: *sessionRef,
		UserRef:    *userRef,
		Limit:      *limit,
	}
	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --since value: %v\n", err)
			os.Exit(1)
		}
		filter.Since = t
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling export...")
		cancel()
	}()

	store, err := openAuditStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open audit store", zap.Error(err))
	}
	recorder := audit.NewRecorder(store, log.WithComponent("audit"))
	defer recorder.Close()

	exporter := export.New(recorder, log.WithComponent("export").Logger)
	result, err := exporter.Export(ctx, filter, *output)
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}

	log.Info("Export complete",
		zap.Int("rows", result.Rows),
		zap.String("format", string(result.Format)),
		zap.String("path", result.Path),
		zap.Duration("duration", result.Duration),
	)
}

// openAuditStore mirrors the server's backend selection so exports read the
// same trail the engine writes.
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
