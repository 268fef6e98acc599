package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/lifelog-dev/lifelog/internal/config"
	"github.com/lifelog-dev/lifelog/internal/repository"
	"github.com/lifelog-dev/lifelog/internal/store"
	"github.com/lifelog-dev/lifelog/internal/sync"
)

// runtime bundles everything a command needs after bootstrap.
type runtime struct {
	cfg    *config.Config
	mode   sync.Mode
	db     *store.DB
	queue  *sync.Queue
	engine *sync.Engine
	repos  *repository.Repositories
	logger *slog.Logger
}

// openRuntime loads config and wires the store, queue, engine, and
// repositories for the configured mode.
func openRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	mode, err := sync.ParseMode(cfg.Deployment.Mode)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	queue, err := sync.OpenQueue(cfg.Database.QueuePath, mode)
	if err != nil {
		db.Close()
		return nil, err
	}

	var client *sync.Client
	if mode.ShouldSync() {
		client = sync.NewClient(cfg.Deployment.ServerURL, cfg.Deployment.DeviceToken)
	}
	engine := sync.NewEngine(mode, queue, client, db.Watermarks(), logger)
	repos := repository.New(mode, db, queue, engine, logger)

	return &runtime{
		cfg:    cfg,
		mode:   mode,
		db:     db,
		queue:  queue,
		engine: engine,
		repos:  repos,
		logger: logger,
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.queue.Close(); err != nil {
		rt.logger.Error("queue close error", "error", err)
	}
	if err := rt.db.Close(); err != nil {
		rt.logger.Error("store close error", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLogLevel(level string) slog.Level {
	switch level {
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
