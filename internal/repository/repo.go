// Package repository composes the mode resolver, the local store, the sync
// queue, and the pull engine behind one facade per entity. Callers mutate
// entities here and never touch the queue or the wire formats directly.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/store"
	"github.com/lifelog-dev/lifelog/internal/sync"
)

// Entity is a synced model with its own validation hook.
type Entity interface {
	models.Synced
	Normalize() error
}

// entityStore is the per-entity persistence surface the facade drives. The
// concrete stores in internal/store satisfy it with T as their pointer type.
type entityStore[T Entity] interface {
	Insert(ctx context.Context, e T) (int64, error)
	Update(ctx context.Context, id int64, e T) error
	UpdateByUID(ctx context.Context, uid string, e T) error
	GetByID(ctx context.Context, id int64) (T, error)
	GetByUID(ctx context.Context, uid string) (T, error)
	List(ctx context.Context, f store.Filters) ([]T, error)
	ChangedSince(ctx context.Context, since time.Time) ([]T, error)
	HardDelete(ctx context.Context, id int64) error
	SoftDelete(ctx context.Context, id int64, now time.Time) error
	SoftDeleteByUID(ctx context.Context, uid string, now time.Time) error
}

// Repo is the generic facade over one synced entity type.
type Repo[T Entity] struct {
	table  string
	mode   sync.Mode
	store  entityStore[T]
	queue  *sync.Queue
	engine *sync.Engine
	logger *slog.Logger
	blank  func() T
}

// NewRepo wires a facade for one table. blank allocates a zero entity for
// decoding remote snapshots.
func NewRepo[T Entity](table string, mode sync.Mode, st entityStore[T], queue *sync.Queue, engine *sync.Engine, logger *slog.Logger, blank func() T) *Repo[T] {
	return &Repo[T]{
		table:  table,
		mode:   mode,
		store:  st,
		queue:  queue,
		engine: engine,
		logger: logger,
		blank:  blank,
	}
}

// Table returns the synced table this facade serves.
func (r *Repo[T]) Table() string { return r.table }

// Add validates e, assigns its identity, and stores it locally. In client
// mode the full snapshot is queued for the host and a drain is attempted
// immediately; a host outage never fails the local write.
func (r *Repo[T]) Add(ctx context.Context, e T) error {
	if err := e.Normalize(); err != nil {
		return err
	}
	if e.GetUID() == "" {
		e.SetUID(uuid.NewString())
	}
	e.Touch(time.Now())

	if _, err := r.store.Insert(ctx, e); err != nil {
		return err
	}
	r.enqueueSnapshot(ctx, sync.OperationCreate, e)
	return nil
}

// Update validates e and overwrites the row with local id. The UID and the
// monotonic stamp are carried forward from the stored row, so callers only
// supply the business fields. In client mode the resulting full snapshot is
// queued.
func (r *Repo[T]) Update(ctx context.Context, id int64, e T) error {
	if err := e.Normalize(); err != nil {
		return err
	}
	current, err := r.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	e.SetUID(current.GetUID())
	e.SetLocalID(id)
	e.SetUpdatedAt(current.LastUpdated())
	e.Touch(time.Now())

	if err := r.store.Update(ctx, id, e); err != nil {
		return err
	}
	r.enqueueSnapshot(ctx, sync.OperationUpdate, e)
	return nil
}

// Delete removes the row with local id. Direct-write modes hard-delete;
// client mode tombstones the row and queues a uid-only delete so the
// removal propagates.
func (r *Repo[T]) Delete(ctx context.Context, id int64) error {
	if r.mode.DirectWrite() {
		return r.store.HardDelete(ctx, id)
	}

	current, err := r.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	current.MarkDeleted(time.Now())
	if err := r.store.Update(ctx, id, current); err != nil {
		return err
	}

	payload, err := json.Marshal(sync.Tombstone{
		UID:       current.GetUID(),
		Deleted:   true,
		UpdatedAt: current.LastUpdated(),
	})
	if err != nil {
		return fmt.Errorf("encode tombstone: %w", err)
	}
	if err := r.queue.Enqueue(ctx, r.table, sync.OperationDelete, payload); err != nil {
		r.logger.Error("enqueue delete failed",
			"component", "repository", "table", r.table, "error", err)
	}
	r.engine.EnsureDrained(ctx)
	return nil
}

// GetByID returns the live row with local id. Client mode refreshes the
// table from the host first; tombstones read as not found.
func (r *Repo[T]) GetByID(ctx context.Context, id int64) (T, error) {
	var zero T
	r.refresh(ctx)
	e, err := r.store.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if e.IsDeleted() {
		return zero, store.ErrNotFound
	}
	return e, nil
}

// GetByUID returns the live row with the given UID, refreshing first in
// client mode.
func (r *Repo[T]) GetByUID(ctx context.Context, uid string) (T, error) {
	var zero T
	r.refresh(ctx)
	e, err := r.store.GetByUID(ctx, uid)
	if err != nil {
		return zero, err
	}
	if e.IsDeleted() {
		return zero, store.ErrNotFound
	}
	return e, nil
}

// Query returns live rows matching the filters, refreshing first in client
// mode. Tombstones are excluded unless the filters ask for them.
func (r *Repo[T]) Query(ctx context.Context, f store.Filters) ([]T, error) {
	r.refresh(ctx)
	return r.store.List(ctx, f)
}

// ChangedSince returns raw snapshots (tombstones included) for the host's
// pull endpoint.
func (r *Repo[T]) ChangedSince(ctx context.Context, since time.Time) ([]T, error) {
	return r.store.ChangedSince(ctx, since)
}

// ApplyPush applies one inbound sync operation on the host. Creates and
// updates land through the idempotent upsert; deletes tombstone by UID.
// Only the host accepts pushes.
func (r *Repo[T]) ApplyPush(ctx context.Context, operation string, data json.RawMessage) error {
	if r.mode != sync.ModeHost {
		return store.ErrHostOnly
	}
	switch operation {
	case sync.OperationCreate, sync.OperationUpdate:
		return r.upsertLocal(ctx, data)
	case sync.OperationDelete:
		var tomb sync.Tombstone
		if err := json.Unmarshal(data, &tomb); err != nil {
			return fmt.Errorf("decode tombstone: %w", err)
		}
		if tomb.UID == "" {
			return store.ErrUIDRequired
		}
		err := r.store.SoftDeleteByUID(ctx, tomb.UID, tomb.UpdatedAt)
		if errors.Is(err, store.ErrNotFound) {
			// Redelivered or never-synced delete; nothing to do.
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown sync operation %q", operation)
	}
}

// UpdateByUID overwrites the row with the given UID. Host-only; the inbound
// sync handler is its only caller.
func (r *Repo[T]) UpdateByUID(ctx context.Context, uid string, e T) error {
	if r.mode != sync.ModeHost {
		return store.ErrHostOnly
	}
	return r.store.UpdateByUID(ctx, uid, e)
}

// DeleteByUID tombstones the row with the given UID. Host-only.
func (r *Repo[T]) DeleteByUID(ctx context.Context, uid string, at time.Time) error {
	if r.mode != sync.ModeHost {
		return store.ErrHostOnly
	}
	return r.store.SoftDeleteByUID(ctx, uid, at)
}

// Refresh drains the queue and pulls this table from the host. A no-op
// outside client mode.
func (r *Repo[T]) Refresh(ctx context.Context) error {
	if !r.mode.ShouldSync() {
		return nil
	}
	return r.engine.Pull(ctx, r.table, r.upsertLocal)
}

// refresh is the best-effort pre-read pull; failures already logged by the
// engine.
func (r *Repo[T]) refresh(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("refresh failed, reading local data",
			"component", "repository", "table", r.table, "error", err)
	}
}

// upsertLocal applies one remote snapshot: full-field overwrite when the
// UID is known, insert preserving the remote UID and stamp otherwise.
// Reapplying the same snapshot is a no-op, which makes redelivery safe.
func (r *Repo[T]) upsertLocal(ctx context.Context, raw json.RawMessage) error {
	e := r.blank()
	if err := json.Unmarshal(raw, e); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", r.table, err)
	}
	uid := e.GetUID()
	if uid == "" {
		return store.ErrUIDRequired
	}
	// Tombstones carry only identity fields and skip validation; anything
	// else must be a complete, valid snapshot before it touches the store.
	if !e.IsDeleted() {
		if err := e.Normalize(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}

	existing, err := r.store.GetByUID(ctx, uid)
	switch {
	case err == nil:
		e.SetLocalID(existing.LocalID())
		return r.store.UpdateByUID(ctx, uid, e)
	case errors.Is(err, store.ErrNotFound):
		if e.IsDeleted() {
			// A tombstone for a row this device never had carries no
			// obligation.
			return nil
		}
		e.SetLocalID(0)
		_, err := r.store.Insert(ctx, e)
		return err
	default:
		return err
	}
}

// enqueueSnapshot queues the full JSON snapshot of e and drains. No-op in
// direct-write modes; queue failures are logged, not raised, so the
// optimistic local write stands.
func (r *Repo[T]) enqueueSnapshot(ctx context.Context, operation string, e T) {
	if !r.mode.ShouldSync() {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("encode snapshot failed",
			"component", "repository", "table", r.table, "error", err)
		return
	}
	if err := r.queue.Enqueue(ctx, r.table, operation, payload); err != nil {
		r.logger.Error("enqueue failed",
			"component", "repository", "table", r.table,
			"operation", operation, "error", err)
		return
	}
	r.engine.EnsureDrained(ctx)
}
