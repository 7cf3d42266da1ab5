// Hybridqd serves the hybridq HTTP API.
//
// Configuration is read from ~/.config/hybridq/config.yaml (or -config) and
// HYBRIDQ_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	hybridqd
//
//	# Connect a database at startup
//	HYBRIDQ_DATABASE_CONNECTION_STRING=sqlite:///company.db hybridqd
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

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/cache"
	"github.com/fyrsmithlabs/hybridq/internal/config"
	"github.com/fyrsmithlabs/hybridq/internal/embeddings"
	"github.com/fyrsmithlabs/hybridq/internal/engine"
	"github.com/fyrsmithlabs/hybridq/internal/events"
	httpserver "github.com/fyrsmithlabs/hybridq/internal/http"
	"github.com/fyrsmithlabs/hybridq/internal/index"
	"github.com/fyrsmithlabs/hybridq/internal/ingest"
	"github.com/fyrsmithlabs/hybridq/internal/logging"
	"github.com/fyrsmithlabs/hybridq/internal/relational"
	"github.com/fyrsmithlabs/hybridq/internal/telemetry"
	"github.com/fyrsmithlabs/hybridq/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  hybridqd           Start the hybridq server\n")
			fmt.Fprintf(os.Stderr, "  hybridqd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("hybridqd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every component and serves until ctx is cancelled.
//
//  1. Telemetry and logger
//  2. Embedding provider, document index and vector mirror
//  3. Event publisher
//  4. Engine manager, with an optional startup connection
//  5. Ingest pipeline and HTTP server
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting hybridqd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))
	for _, reason := range tel.Degraded() {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	provider, err := embeddings.NewProvider(embeddings.FromSettings(cfg.Embeddings), logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	defer provider.Close()

	indexer := index.New(provider, index.WithLogger(logger))

	mirror, err := vectorstore.NewStore(ctx, cfg.VectorStore, provider.Dimension(), provider, logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer mirror.Close()

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("failed to connect event publisher: %w", err)
	}
	defer publisher.Close()

	manager := engine.NewManager(engine.ManagerConfig{
		Indexer: indexer,
		Cache:   cache.New(cfg.Cache.TTL.Duration()),
		Options: engine.Options{
			SQLTimeout:    cfg.Query.SQLTimeout.Duration(),
			DocTimeout:    cfg.Query.DocTimeout.Duration(),
			MaxDocResults: cfg.Query.MaxDocResults,
		},
		Events: publisher,
		Open: engine.RelationalOpener(relational.Options{
			ConnectTimeout: cfg.Database.ConnectTimeout.Duration(),
			MaxOpenConns:   cfg.Database.MaxOpenConns,
		}),
		Logger: logger,
	})
	defer manager.Close()

	if cfg.Database.ConnectionString.IsSet() {
		if _, err := manager.Connect(ctx, cfg.Database.ConnectionString.Value()); err != nil {
			// Clients can still connect over HTTP.
			logger.Warn(ctx, "startup database connection failed", zap.Error(err))
		}
	}

	pipeline := ingest.New(manager,
		ingest.WithMirror(mirror),
		ingest.WithTimeout(cfg.Ingest.Timeout.Duration()),
		ingest.WithLogger(logger))

	srv, err := httpserver.NewServer(manager, pipeline, logger, &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
		DefaultLimit:   cfg.Query.DefaultLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
