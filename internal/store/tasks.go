package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// TaskStore provides CRUD over the tasks table. Rows are addressed by local
// id within this database file and by UID across devices.
type TaskStore struct {
	db *DB
}

const taskColumns = `id, uid, title, project, category, importance, created, due,
	status, start, end_time, priority, recur_interval, recur_unit,
	recur_days_of_week, recur_base, tags, notes, updated_at, deleted`

// scanTask scans a row into a Task.
func scanTask(scanner interface{ Scan(...any) error }) (*models.Task, error) {
	var (
		t                               models.Task
		created, due, start, end        sql.NullString
		recurBase                       sql.NullString
		project, category, tags, notes  sql.NullString
		recurUnit, recurDays            sql.NullString
		recurInterval                   sql.NullInt64
		status, updatedAt               string
		deleted                         int
	)

	err := scanner.Scan(
		&t.ID, &t.UID, &t.Title, &project, &category, &t.Importance,
		&created, &due, &status, &start, &end, &t.Priority,
		&recurInterval, &recurUnit, &recurDays, &recurBase,
		&tags, &notes, &updatedAt, &deleted,
	)
	if err != nil {
		return nil, err
	}

	t.Project = project.String
	t.Category = category.String
	t.Status = models.TaskStatus(status)
	t.RecurInterval = int(recurInterval.Int64)
	t.RecurUnit = recurUnit.String
	t.RecurDaysOfWeek = recurDays.String
	t.Tags = tags.String
	t.Notes = notes.String
	t.UpdatedAt = mustTime(updatedAt)
	t.Deleted = deleted != 0

	for _, pair := range []struct {
		raw  sql.NullString
		dest **time.Time
	}{
		{created, &t.Created}, {due, &t.Due}, {start, &t.Start},
		{end, &t.End}, {recurBase, &t.RecurBase},
	} {
		parsed, err := scanTime(pair.raw)
		if err != nil {
			return nil, fmt.Errorf("parse task timestamp: %w", err)
		}
		*pair.dest = parsed
	}

	return &t, nil
}

// taskArgs returns the column values in models.TaskFields order.
func taskArgs(t *models.Task) []any {
	return []any{
		t.UID, t.Title, t.Project, t.Category, t.Importance,
		nullTime(t.Created), nullTime(t.Due), string(t.Status),
		nullTime(t.Start), nullTime(t.End), t.Priority,
		t.RecurInterval, t.RecurUnit, t.RecurDaysOfWeek, nullTime(t.RecurBase),
		t.Tags, t.Notes, timeValue(t.UpdatedAt), boolValue(t.Deleted),
	}
}

// Insert stores a new task and records its assigned local id on t.
func (s *TaskStore) Insert(ctx context.Context, t *models.Task) (int64, error) {
	if t.UID == "" {
		return 0, ErrUIDRequired
	}
	res, err := s.db.exec(ctx, `
		INSERT INTO tasks (uid, title, project, category, importance, created, due,
			status, start, end_time, priority, recur_interval, recur_unit,
			recur_days_of_week, recur_base, tags, notes, updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, taskArgs(t)...)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("task insert id: %w", err)
	}
	t.ID = id
	return id, nil
}

const taskUpdateSQL = `
	UPDATE tasks SET title = ?, project = ?, category = ?, importance = ?,
		created = ?, due = ?, status = ?, start = ?, end_time = ?, priority = ?,
		recur_interval = ?, recur_unit = ?, recur_days_of_week = ?,
		recur_base = ?, tags = ?, notes = ?, updated_at = ?, deleted = ?`

// taskUpdateArgs mirrors taskUpdateSQL: every column except id and the
// immutable uid.
func taskUpdateArgs(t *models.Task) []any {
	return []any{
		t.Title, t.Project, t.Category, t.Importance,
		nullTime(t.Created), nullTime(t.Due), string(t.Status),
		nullTime(t.Start), nullTime(t.End), t.Priority,
		t.RecurInterval, t.RecurUnit, t.RecurDaysOfWeek, nullTime(t.RecurBase),
		t.Tags, t.Notes, timeValue(t.UpdatedAt), boolValue(t.Deleted),
	}
}

// Update overwrites every mutable column of the row with local id.
func (s *TaskStore) Update(ctx context.Context, id int64, t *models.Task) error {
	res, err := s.db.exec(ctx, taskUpdateSQL+` WHERE id = ?`,
		append(taskUpdateArgs(t), id)...)
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	return requireRow(res)
}

// UpdateByUID overwrites every mutable column of the row with the given
// UID, keeping the local id intact.
func (s *TaskStore) UpdateByUID(ctx context.Context, uid string, t *models.Task) error {
	res, err := s.db.exec(ctx, taskUpdateSQL+` WHERE uid = ?`,
		append(taskUpdateArgs(t), uid)...)
	if err != nil {
		return fmt.Errorf("update task uid=%s: %w", uid, err)
	}
	return requireRow(res)
}

// GetByID returns the task with the given local id, tombstones included.
func (s *TaskStore) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	row := s.db.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// GetByUID returns the task with the given UID, tombstones included so sync
// reconciliation can still address them.
func (s *TaskStore) GetByUID(ctx context.Context, uid string) (*models.Task, error) {
	row := s.db.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE uid = ?`, uid)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// List returns tasks matching the filters, excluding tombstones unless
// requested.
func (s *TaskStore) List(ctx context.Context, f Filters) ([]*models.Task, error) {
	where, args := buildWhere(f)
	rows, err := s.db.query(ctx,
		`SELECT `+taskColumns+` FROM tasks`+where+orderClause(f, "id ASC"), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ChangedSince returns every task (tombstones included) with updated_at at
// or after since; the zero time returns the whole table. Serves the host
// pull endpoint.
func (s *TaskStore) ChangedSince(ctx context.Context, since time.Time) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if !since.IsZero() {
		query += ` WHERE updated_at >= ?`
		args = append(args, models.FormatTime(since))
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks changed since: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// HardDelete removes the row outright. Only valid in direct-write modes;
// clients tombstone instead.
func (s *TaskStore) HardDelete(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDelete tombstones the row with the given local id.
func (s *TaskStore) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE tasks SET deleted = 1, updated_at = ? WHERE id = ?`,
		models.FormatTime(now), id)
	if err != nil {
		return fmt.Errorf("soft delete task %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDeleteByUID tombstones the row with the given UID (host side of a
// propagated delete).
func (s *TaskStore) SoftDeleteByUID(ctx context.Context, uid string, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE tasks SET deleted = 1, updated_at = ? WHERE uid = ?`,
		models.FormatTime(now), uid)
	if err != nil {
		return fmt.Errorf("soft delete task uid=%s: %w", uid, err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row write into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
