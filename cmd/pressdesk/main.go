// Package main provides the pressdesk binary entry point.
// Pressdesk is the local task-execution service behind the newsroom browser
// extension: it runs prompt tasks against an LLM provider, tracks execution
// state, and serves the HTTP command surface the extension talks to.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/pressdesk/pressdesk/llm/providers"

	"github.com/pressdesk/pressdesk/api"
	"github.com/pressdesk/pressdesk/config"
	"github.com/pressdesk/pressdesk/content"
	"github.com/pressdesk/pressdesk/execution"
	"github.com/pressdesk/pressdesk/llm"
	"github.com/pressdesk/pressdesk/storage"
	"github.com/pressdesk/pressdesk/task"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "pressdesk"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Task execution service for the newsroom extension",
		Long: `Pressdesk runs prompt tasks for journalists and fact-checkers.

It provides:
- A task registry with editable prompt templates
- Executions that compile a template with page text and attachments
- Refinement of completed output without losing the last good version
- Attachment upload and article content extraction

State persists in a NATS JetStream KV bucket, or in memory for local use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(logLevel)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(logLevel string) error {
	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration (defaults → user file → project file → env)
	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Storage backend
	kv, closeStorage, err := openStorage(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	credentials := llm.NewStoredCredentials(kv, llm.DefaultCredentialEnv)
	registry := task.NewRegistry(kv, task.WithLogger(logger))

	// Optional task override file watcher
	if cfg.Tasks.OverrideFile != "" && cfg.Tasks.Watch {
		watcher, err := task.NewWatcher(registry, cfg.Tasks.OverrideFile, logger)
		if err != nil {
			return fmt.Errorf("watch task override file: %w", err)
		}
		go func() {
			if err := watcher.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Task watcher stopped", "error", err)
			}
		}()
		logger.Info("Watching task override file", "path", cfg.Tasks.OverrideFile)
	}

	// Completion client
	client, err := llm.NewClient(cfg.Provider.Name, cfg.Provider.BaseURL, cfg.Provider.Model,
		credentials,
		llm.WithTimeout(cfg.Provider.Timeout),
		llm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	engine := execution.NewEngine(execution.NewStore(), registry, client,
		execution.WithLogger(logger))
	fetcher := content.NewFetcher(content.WithLogger(logger))

	server := api.NewServer(engine, registry, client, credentials, fetcher,
		api.WithLogger(logger))

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Pressdesk ready",
			"version", Version,
			"listen", cfg.Server.Listen,
			"provider", cfg.Provider.Name,
			"model", cfg.Provider.Model,
			"storage", cfg.Storage.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-signalCtx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping http server", "error", err)
	}

	logger.Info("Pressdesk shutdown complete")
	return nil
}

// openStorage builds the configured KV backend and returns it with a close
// function.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.KV, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		logger.Info("Using in-memory storage, state is lost on restart")
		return storage.NewMemory(), func() {}, nil

	case "nats":
		logger.Info("Connecting to NATS", "url", cfg.Storage.NATSURL)
		nc, err := nats.Connect(cfg.Storage.NATSURL,
			nats.Name(appName),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second))
		if err != nil {
			return nil, nil, wrapNATSError(err, cfg.Storage.NATSURL)
		}

		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("create jetstream context: %w", err)
		}

		kv, err := storage.NewNATS(ctx, js)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		logger.Info("Connected to NATS", "url", cfg.Storage.NATSURL)
		return kv, nc.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set PRESSDESK_STORAGE_BACKEND=memory to run without persistence.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}
