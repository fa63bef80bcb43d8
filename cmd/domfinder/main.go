// CLAUDE:SUMMARY Entry point for domfinder: chi web form, optional MCP stdio mode, one-shot -extract CLI, env + YAML config.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domfinder/dbopen"
	"github.com/hazyhaar/domfinder/domfinder"
	"github.com/hazyhaar/domfinder/kit"
	"github.com/hazyhaar/domfinder/observability"
	"github.com/hazyhaar/domfinder/shield"

	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", env("CONFIG_FILE", ""), "path to domfinder.yaml config file")
	extractOnce := flag.Bool("extract", false, "read text from stdin, run one extraction, print the records as JSON and exit")
	flag.Parse()

	// CLI output goes to stdout, so logs move to stderr.
	logOut := io.Writer(os.Stdout)
	if *extractOnce || env("MCP_TRANSPORT", "") == "stdio" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: parseLevel(env("LOG_LEVEL", "info"))}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *configPath, *extractOnce); err != nil {
		logger.Error("domfinder: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, extractOnce bool) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}

	opts := []domfinder.Option{domfinder.WithLogger(logger)}
	if cfg.HistoryDB != "" {
		db, err := openHistory(ctx, cfg.HistoryDB, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, domfinder.WithHistory(observability.NewEventLogger(db, observability.WithLogger(logger))))
	}

	svc, err := domfinder.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	// One-shot: extract from stdin.
	if extractOnce {
		return extractStdin(kit.WithTransport(ctx, "cli"), svc, os.Stdin, os.Stdout)
	}

	if env("MCP_TRANSPORT", "") == "stdio" {
		srv := mcp.NewServer(&mcp.Implementation{Name: "domfinder", Version: "1.0.0"}, nil)
		svc.RegisterMCP(srv)
		logger.Info("MCP stdio starting", "storage", svc.StoragePath())
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	}

	return serve(ctx, svc, env("PORT", "8086"))
}

func serve(ctx context.Context, svc *domfinder.Service, port string) error {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(svc.Config().MaxFormBytes) {
		r.Use(mw)
	}
	svc.Routes(r)

	// Each extraction fetches every domain in turn, so writes can take long.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", port, "storage", svc.StoragePath())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

// extractStdin runs one extraction over everything read from in and writes
// the records as indented JSON to out.
func extractStdin(ctx context.Context, svc *domfinder.Service, in io.Reader, out io.Writer) error {
	text, err := io.ReadAll(io.LimitReader(in, svc.Config().MaxFormBytes))
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(text) == 0 {
		return domfinder.ErrEmptyInput
	}
	sess := svc.Sessions().Get("")
	run, err := svc.Extract(kit.WithSessionID(ctx, sess.ID), sess, string(text), false)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// openHistory opens the history database, applies its schema and prunes
// events older than HISTORY_RETENTION_DAYS.
func openHistory(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		return nil, fmt.Errorf("history db: %w", err)
	}
	days, _ := strconv.Atoi(env("HISTORY_RETENTION_DAYS", "0"))
	if n, err := observability.Cleanup(ctx, db, days, time.Now()); err != nil {
		logger.Warn("history cleanup", "error", err)
	} else if n > 0 {
		logger.Info("history cleanup", "deleted", n)
	}
	return db, nil
}

// resolveConfig loads the optional YAML file, then applies env overrides.
func resolveConfig(configPath string) (domfinder.Config, error) {
	var cfg domfinder.Config
	if configPath != "" {
		var err error
		if cfg, err = domfinder.LoadConfigFile(configPath); err != nil {
			return cfg, err
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("STORAGE_FILE"); v != "" {
		cfg.StorageFile = v
	}
	if v, ok := os.LookupEnv("HISTORY_DB"); ok {
		cfg.HistoryDB = v
	} else if cfg.HistoryDB == "" && configPath == "" {
		cfg.HistoryDB = "db/history.db"
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("FETCH_TIMEOUT: %w", err)
		}
		cfg.Fetch.Timeout = d
	}
	return cfg, nil
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
