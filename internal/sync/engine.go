package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/lifelog-dev/lifelog/internal/store"
)

// Engine drives the client side of synchronization: draining the outbound
// queue and pulling remote changes down into the local database. One Engine
// serves the whole process; each synced table gets its own mutex so a drain
// and a pull for the same table never interleave.
type Engine struct {
	mode       Mode
	queue      *Queue
	client     *Client
	watermarks *store.WatermarkStore
	logger     *slog.Logger

	tableMu map[string]*gosync.Mutex
}

// NewEngine wires an Engine. client may be nil in modes that never sync.
func NewEngine(mode Mode, queue *Queue, client *Client, watermarks *store.WatermarkStore, logger *slog.Logger) *Engine {
	mu := make(map[string]*gosync.Mutex, len(Tables))
	for _, t := range Tables {
		mu[t] = &gosync.Mutex{}
	}
	return &Engine{
		mode:       mode,
		queue:      queue,
		client:     client,
		watermarks: watermarks,
		logger:     logger,
		tableMu:    mu,
	}
}

// EnsureDrained pushes every pending queue entry to the host in FIFO order.
// A failed push stops the remaining entries for that table in this pass,
// preserving per-table ordering, but other tables continue. Failures are
// logged at warn and never surface to callers; the entries stay queued for
// the next pass. Safe to call repeatedly, including when the queue is empty.
func (e *Engine) EnsureDrained(ctx context.Context) {
	if !e.mode.ShouldSync() {
		return
	}
	pending, err := e.queue.Pending(ctx)
	if err != nil {
		e.logger.Warn("read sync queue failed",
			"component", "sync", "action", "drain", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	failed := make(map[string]bool)
	drained := 0
	for _, entry := range pending {
		if failed[entry.TableName] {
			continue
		}
		if err := e.client.Push(ctx, entry.TableName, entry.Operation, entry.Payload); err != nil {
			failed[entry.TableName] = true
			e.logger.Warn("push failed, entry stays queued",
				"component", "sync", "action", "drain",
				"table", entry.TableName, "operation", entry.Operation, "error", err)
			continue
		}
		if err := e.queue.Delete(ctx, entry.ID); err != nil {
			// The host applied the change; a redelivery on the next pass
			// is absorbed by the idempotent upsert.
			failed[entry.TableName] = true
			e.logger.Warn("dequeue failed after confirmed push",
				"component", "sync", "action", "drain",
				"table", entry.TableName, "error", err)
			continue
		}
		drained++
	}
	if drained > 0 {
		e.logger.Info("queue drained",
			"component", "sync", "action", "drain", "pushed", drained)
	}
}

// Pull refreshes one table from the host: drain first so our own writes are
// not overwritten by a stale fetch, then fetch records changed since the
// watermark and apply each through the caller's upsert. The watermark
// advances only when every record applied cleanly, so a partial failure is
// retried from the same point. Transport failures are logged and swallowed;
// the caller falls back to local data.
func (e *Engine) Pull(ctx context.Context, table string, apply func(context.Context, json.RawMessage) error) error {
	if !e.mode.ShouldSync() {
		return nil
	}
	mu, ok := e.tableMu[table]
	if !ok {
		return fmt.Errorf("%w: %q", store.ErrUnknownSyncTable, table)
	}
	mu.Lock()
	defer mu.Unlock()

	e.EnsureDrained(ctx)

	start := time.Now()
	since, _, err := e.watermarks.LastSynced(ctx, table)
	if err != nil {
		return fmt.Errorf("read watermark for %s: %w", table, err)
	}

	records, err := e.client.FetchSince(ctx, table, since)
	if err != nil {
		e.logger.Warn("pull fetch failed, serving local data",
			"component", "sync", "action", "pull", "table", table, "error", err)
		return nil
	}

	applied := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := apply(ctx, record); err != nil {
			e.logger.Error("apply pulled record failed, watermark held",
				"component", "sync", "action", "pull", "table", table, "error", err)
			return nil
		}
		applied++
	}

	if err := e.watermarks.SetLastSynced(ctx, table, start); err != nil {
		return fmt.Errorf("advance watermark for %s: %w", table, err)
	}
	if applied > 0 {
		e.logger.Info("pull applied",
			"component", "sync", "action", "pull", "table", table,
			"records", applied, "duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

// PullAll refreshes every synced table; apply is resolved per table.
func (e *Engine) PullAll(ctx context.Context, applyFor func(table string) func(context.Context, json.RawMessage) error) error {
	for _, table := range Tables {
		if err := e.Pull(ctx, table, applyFor(table)); err != nil {
			return err
		}
	}
	return nil
}
