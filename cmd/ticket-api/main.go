// Package main provides the ticket-api server for the e-ticket wallet.
//
// This is a standalone REST API server that accepts ticket PDFs and decoded QR
// strings, extracts the journey details and keeps the saved tickets in the
// configured store (SQLite, PostgreSQL or Redis). Extraction attempts can be
// archived to ClickHouse, and QR scans can also arrive over NATS.
//
// Usage:
//
//	ticket-api [options]
//
// Options:
//
//	-config FILE        YAML config file (env: CONFIG_PATH)
//	-addr ADDR          HTTP listen address (overrides http.addr)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys (env: API_KEYS)
//
// Everything else comes from the config file or the environment:
// STORAGE_BACKEND, SQLITE_PATH, POSTGRES_*, REDIS_*, CLICKHOUSE_*,
// ARCHIVE_ENABLED, NATS_URL, LOG_LEVEL, LOG_FORMAT.
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/tickets
//	    Saved tickets, ordered by journey date.
//
//	GET /api/v1/tickets/{id}
//	DELETE /api/v1/tickets/{id}
//	    Fetch or remove one saved ticket.
//
//	GET /api/v1/tickets/export.xlsx
//	    Saved tickets as a spreadsheet.
//
//	POST /api/v1/tickets/pdf
//	    Upload a ticket PDF (multipart field "file" or raw body).
//
//	POST /api/v1/tickets/qr
//	    Submit a decoded QR string. Body: {"text": "..."} or text/plain.
//
//	GET /metrics
//	    Prometheus metrics.
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eticket_parser/internal/api"
	"eticket_parser/internal/config"
	"eticket_parser/internal/export"
	"eticket_parser/internal/extract"
	"eticket_parser/internal/feed"
	"eticket_parser/internal/logging"
	_ "eticket_parser/internal/parsers" // register all parsers via init()
	"eticket_parser/internal/storage"
	"eticket_parser/internal/wallet"
)

// drainTimeout bounds how long shutdown waits for in-flight scans.
const drainTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", envOrDefault("CONFIG_PATH", ""), "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", envOrDefault("API_KEYS", ""), "Comma-separated list of valid API keys (when auth enabled)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *authEnabled, splitKeys(*apiKeys, cfg.HTTP.APIKey)); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, authEnabled bool, keys []string) error {
	// Open the ticket store.
	backend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	var opts []extract.Option
	if cfg.Storage.Archive {
		archive, err := storage.OpenClickHouse(ctx, cfg.Storage.ClickHouse)
		if err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer archive.Close()
		opts = append(opts, extract.WithArchive(archive))
	}
	svc := extract.NewService(logger, opts...)

	// NATS is optional: without a URL the server only takes HTTP uploads.
	var conn *feed.Conn
	var walletOpts []wallet.Option
	if cfg.NATS.URL != "" {
		conn, err = feed.Connect(cfg.NATS.URL, "ticket-api", logger)
		if err != nil {
			return err
		}
		// Runs before the store closes, so drained scans can still be saved.
		defer func() {
			if err := conn.Shutdown(drainTimeout); err != nil {
				logger.Warn("nats shutdown", "error", err)
			}
		}()
		walletOpts = append(walletOpts, wallet.WithPublisher(feed.NewPublisher(conn.Conn, cfg.NATS.AddedSubject)))
	}

	w := wallet.New(backend, logger, walletOpts...)
	if err := w.Load(ctx); err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	logger.Info("wallet loaded", "backend", cfg.Storage.Backend, "tickets", w.Len())

	if conn != nil {
		if _, err := feed.Subscribe(ctx, conn.Conn, cfg.NATS.ScanSubject, cfg.NATS.Queue, feed.NewHandler(svc, w, logger)); err != nil {
			return err
		}
	}

	server := api.NewTicketServer(svc, w, export.NewService(logger), api.Config{
		Addr:           cfg.HTTP.Addr,
		AuthEnabled:    authEnabled || len(keys) > 0,
		APIKeys:        keys,
		Timeout:        cfg.HTTP.Timeout,
		MaxUploadBytes: cfg.HTTP.MaxUploadMB << 20,
		Logger:         logger,
	})
	return server.Run(ctx)
}

// splitKeys merges the comma-separated flag value with the single configured key.
func splitKeys(list, single string) []string {
	var keys []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if single = strings.TrimSpace(single); single != "" {
		keys = append(keys, single)
	}
	return keys
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
