package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// Queue is the durable outbound change queue. It lives in its own database
// file so a queue append can never be torn by an entity-table transaction
// and vice versa. Entries survive process restarts.
type Queue struct {
	db   *sql.DB
	mode Mode
}

const queueSchema = `
CREATE TABLE IF NOT EXISTS sync_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	operation TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_order ON sync_queue(created_at, id);
`

// OpenQueue opens (creating if needed) the queue database at path.
func OpenQueue(path string, mode Mode) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("queue pragma: %w", err)
		}
	}
	if _, err := db.Exec(queueSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	return &Queue{db: db, mode: mode}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue appends a pending change. In modes that write directly it is a
// silent no-op so callers never branch on mode themselves.
func (q *Queue) Enqueue(ctx context.Context, table, operation string, payload json.RawMessage) error {
	if !q.mode.ShouldSync() {
		return nil
	}
	if !KnownTable(table) {
		return fmt.Errorf("enqueue: unknown sync table %q", table)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sync_queue (table_name, operation, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, table, operation, string(payload), models.FormatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("enqueue %s %s: %w", operation, table, err)
	}
	return nil
}

// Pending returns every queued entry in FIFO order.
func (q *Queue) Pending(ctx context.Context) ([]QueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, table_name, operation, payload, created_at
		FROM sync_queue ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	defer rows.Close()

	var out []QueueEntry
	for rows.Next() {
		var (
			e       QueueEntry
			payload string
			created string
		)
		if err := rows.Scan(&e.ID, &e.TableName, &e.Operation, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		ts, err := models.ParseTime(created)
		if err != nil {
			return nil, fmt.Errorf("parse queue timestamp: %w", err)
		}
		e.CreatedAt = ts
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a confirmed entry.
func (q *Queue) Delete(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete queue entry %d: %w", id, err)
	}
	return nil
}

// Len returns the number of pending entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}
