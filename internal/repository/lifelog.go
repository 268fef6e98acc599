package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/store"
	"github.com/lifelog-dev/lifelog/internal/sync"
)

// Repositories bundles the facade for every entity. Synced entities share
// one queue and one engine; tracker entries and environment snapshots stay
// strictly local.
type Repositories struct {
	Tasks    *Repo[*models.Task]
	TimeLogs *Repo[*models.TimeLog]
	Trackers *Repo[*models.Tracker]
	Goals    *Repo[*models.Goal]

	db     *store.DB
	mode   sync.Mode
	engine *sync.Engine
	logger *slog.Logger
}

// New wires every facade against one database, queue, and engine.
func New(mode sync.Mode, db *store.DB, queue *sync.Queue, engine *sync.Engine, logger *slog.Logger) *Repositories {
	return &Repositories{
		Tasks: NewRepo("tasks", mode, db.Tasks(), queue, engine, logger,
			func() *models.Task { return &models.Task{} }),
		TimeLogs: NewRepo("time_history", mode, db.TimeLogs(), queue, engine, logger,
			func() *models.TimeLog { return &models.TimeLog{} }),
		Trackers: NewRepo("trackers", mode, db.Trackers(), queue, engine, logger,
			func() *models.Tracker { return &models.Tracker{} }),
		Goals: NewRepo("goals", mode, db.Goals(), queue, engine, logger,
			func() *models.Goal { return &models.Goal{} }),
		db:     db,
		mode:   mode,
		engine: engine,
		logger: logger,
	}
}

// Mode returns the deployment mode the facades were wired with.
func (r *Repositories) Mode() sync.Mode { return r.mode }

// ApplyPush routes an inbound sync operation to the table's facade.
func (r *Repositories) ApplyPush(ctx context.Context, table, operation string, data json.RawMessage) error {
	switch table {
	case "tasks":
		return r.Tasks.ApplyPush(ctx, operation, data)
	case "time_history":
		return r.TimeLogs.ApplyPush(ctx, operation, data)
	case "trackers":
		return r.Trackers.ApplyPush(ctx, operation, data)
	case "goals":
		return r.Goals.ApplyPush(ctx, operation, data)
	default:
		return store.ErrUnknownSyncTable
	}
}

// ChangedSince returns a table's full snapshots (tombstones included) with
// updated_at at or after since, ready for JSON encoding.
func (r *Repositories) ChangedSince(ctx context.Context, table string, since time.Time) (any, error) {
	switch table {
	case "tasks":
		return r.Tasks.ChangedSince(ctx, since)
	case "time_history":
		return r.TimeLogs.ChangedSince(ctx, since)
	case "trackers":
		return r.Trackers.ChangedSince(ctx, since)
	case "goals":
		return r.Goals.ChangedSince(ctx, since)
	default:
		return nil, store.ErrUnknownSyncTable
	}
}

// SyncNow drains the queue and pulls every synced table. A no-op outside
// client mode.
func (r *Repositories) SyncNow(ctx context.Context) error {
	if !r.mode.ShouldSync() {
		return nil
	}
	return r.engine.PullAll(ctx, func(table string) func(context.Context, json.RawMessage) error {
		switch table {
		case "tasks":
			return r.Tasks.upsertLocal
		case "time_history":
			return r.TimeLogs.upsertLocal
		case "trackers":
			return r.Trackers.upsertLocal
		default:
			return r.Goals.upsertLocal
		}
	})
}

// StartTimer opens a new time entry. Only one entry may run at a time.
func (r *Repositories) StartTimer(ctx context.Context, entry *models.TimeLog) error {
	r.TimeLogs.refresh(ctx)
	_, err := r.db.TimeLogs().Active(ctx)
	if err == nil {
		return store.ErrEntryOpen
	}
	if !errors.Is(err, store.ErrNoActiveEntry) {
		return err
	}
	if entry.Start.IsZero() {
		entry.Start = time.Now().UTC()
	}
	return r.TimeLogs.Add(ctx, entry)
}

// StopTimer closes the running time entry at end and returns it.
func (r *Repositories) StopTimer(ctx context.Context, end time.Time) (*models.TimeLog, error) {
	active, err := r.db.TimeLogs().Active(ctx)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	active.Close(end)
	if err := r.TimeLogs.Update(ctx, active.ID, active); err != nil {
		return nil, err
	}
	return active, nil
}

// ActiveTimer returns the running entry, or store.ErrNoActiveEntry.
func (r *Repositories) ActiveTimer(ctx context.Context) (*models.TimeLog, error) {
	return r.db.TimeLogs().Active(ctx)
}

// AddTrackerEntry logs a value against a tracker. Entries are local-only.
func (r *Repositories) AddTrackerEntry(ctx context.Context, e *models.TrackerEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if _, err := r.db.Trackers().GetByID(ctx, e.TrackerID); err != nil {
		return err
	}
	_, err := r.db.Trackers().AddEntry(ctx, e)
	return err
}

// TrackerEntries returns a tracker's logged values within [from, to).
func (r *Repositories) TrackerEntries(ctx context.Context, trackerID int64, from, to time.Time) ([]*models.TrackerEntry, error) {
	return r.db.Trackers().Entries(ctx, trackerID, from, to)
}

// DeleteTrackerEntry removes one logged value outright.
func (r *Repositories) DeleteTrackerEntry(ctx context.Context, id int64) error {
	return r.db.Trackers().DeleteEntry(ctx, id)
}

// RecordEnvironment stores a local-only environment snapshot.
func (r *Repositories) RecordEnvironment(ctx context.Context, e *models.EnvironmentData) error {
	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := r.db.Environment().Insert(ctx, e)
	return err
}

// EnvironmentRange returns environment snapshots within [from, to).
func (r *Repositories) EnvironmentRange(ctx context.Context, from, to time.Time) ([]*models.EnvironmentData, error) {
	return r.db.Environment().Range(ctx, from, to)
}
