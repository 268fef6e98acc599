// Package store is the SQLite persistence layer: one file for the entity
// tables plus the per-table sync watermarks, and (managed by internal/sync) a
// second file for the durable sync queue so the two cannot corrupt each
// other. Connections are pooled by database/sql; no transaction ever spans a
// network call.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"
)

// DB wraps the main lifelog database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath, enables the pragmas, and
// runs migrations.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{db: db}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Tasks returns the task table accessor.
func (d *DB) Tasks() *TaskStore { return &TaskStore{db: d} }

// TimeLogs returns the time_history table accessor.
func (d *DB) TimeLogs() *TimeLogStore { return &TimeLogStore{db: d} }

// Trackers returns the trackers/tracker_entries table accessor.
func (d *DB) Trackers() *TrackerStore { return &TrackerStore{db: d} }

// Goals returns the goals (+detail tables) accessor.
func (d *DB) Goals() *GoalStore { return &GoalStore{db: d} }

// Environment returns the environment_data table accessor.
func (d *DB) Environment() *EnvironmentStore { return &EnvironmentStore{db: d} }

// Watermarks returns the sync_state table accessor.
func (d *DB) Watermarks() *WatermarkStore { return &WatermarkStore{db: d} }

// Devices returns the devices/pair_codes accessor.
func (d *DB) Devices() *DeviceStore { return &DeviceStore{db: d} }

// retryPolicy bounds retries of writes that hit a transiently locked
// database file.
func retryPolicy() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewConstant(100*time.Millisecond))
}

// isBusy reports whether err is a transient SQLITE_BUSY/locked condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}

// exec runs a write statement, retrying while the database file is locked
// by another process.
func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retry.Do(ctx, retryPolicy(), func(ctx context.Context) error {
		var execErr error
		res, execErr = d.db.ExecContext(ctx, query, args...)
		if isBusy(execErr) {
			return retry.RetryableError(execErr)
		}
		return execErr
	})
	return res, err
}

// query runs a read statement with the same lock-retry policy as exec.
func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := retry.Do(ctx, retryPolicy(), func(ctx context.Context) error {
		var qErr error
		rows, qErr = d.db.QueryContext(ctx, query, args...)
		if isBusy(qErr) {
			return retry.RetryableError(qErr)
		}
		return qErr
	})
	return rows, err
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// begin starts a transaction for multi-table writes (goal core + detail).
func (d *DB) begin(ctx context.Context) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, nil)
}

// notFound maps sql.ErrNoRows onto the package sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
