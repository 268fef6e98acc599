package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// TimeLogStore provides CRUD over the time_history table.
type TimeLogStore struct {
	db *DB
}

const timeLogColumns = `id, uid, title, start, end_time, duration_minutes, task_uid,
	category, project, tags, notes, distracted_minutes, updated_at, deleted`

func scanTimeLog(scanner interface{ Scan(...any) error }) (*models.TimeLog, error) {
	var (
		l                              models.TimeLog
		start, updatedAt               string
		end                            sql.NullString
		taskUID, category, project     sql.NullString
		tags, notes                    sql.NullString
		duration                       sql.NullFloat64
		deleted                        int
	)

	err := scanner.Scan(
		&l.ID, &l.UID, &l.Title, &start, &end, &duration, &taskUID,
		&category, &project, &tags, &notes, &l.DistractedMinutes,
		&updatedAt, &deleted,
	)
	if err != nil {
		return nil, err
	}

	l.Start = mustTime(start)
	endTime, err := scanTime(end)
	if err != nil {
		return nil, fmt.Errorf("parse time log end: %w", err)
	}
	l.End = endTime
	l.DurationMinutes = duration.Float64
	l.TaskUID = taskUID.String
	l.Category = category.String
	l.Project = project.String
	l.Tags = tags.String
	l.Notes = notes.String
	l.UpdatedAt = mustTime(updatedAt)
	l.Deleted = deleted != 0
	return &l, nil
}

func timeLogArgs(l *models.TimeLog) []any {
	return []any{
		l.Title, timeValue(l.Start), nullTime(l.End), l.DurationMinutes,
		l.TaskUID, l.Category, l.Project, l.Tags, l.Notes,
		l.DistractedMinutes, timeValue(l.UpdatedAt), boolValue(l.Deleted),
	}
}

// Insert stores a new time log entry and records its local id on l.
func (s *TimeLogStore) Insert(ctx context.Context, l *models.TimeLog) (int64, error) {
	if l.UID == "" {
		return 0, ErrUIDRequired
	}
	res, err := s.db.exec(ctx, `
		INSERT INTO time_history (uid, title, start, end_time, duration_minutes,
			task_uid, category, project, tags, notes, distracted_minutes,
			updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{l.UID}, timeLogArgs(l)...)...)
	if err != nil {
		return 0, fmt.Errorf("insert time log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("time log insert id: %w", err)
	}
	l.ID = id
	return id, nil
}

const timeLogUpdateSQL = `
	UPDATE time_history SET title = ?, start = ?, end_time = ?,
		duration_minutes = ?, task_uid = ?, category = ?, project = ?,
		tags = ?, notes = ?, distracted_minutes = ?, updated_at = ?, deleted = ?`

// Update overwrites every mutable column of the row with local id.
func (s *TimeLogStore) Update(ctx context.Context, id int64, l *models.TimeLog) error {
	res, err := s.db.exec(ctx, timeLogUpdateSQL+` WHERE id = ?`,
		append(timeLogArgs(l), id)...)
	if err != nil {
		return fmt.Errorf("update time log %d: %w", id, err)
	}
	return requireRow(res)
}

// UpdateByUID overwrites every mutable column of the row with the given UID.
func (s *TimeLogStore) UpdateByUID(ctx context.Context, uid string, l *models.TimeLog) error {
	res, err := s.db.exec(ctx, timeLogUpdateSQL+` WHERE uid = ?`,
		append(timeLogArgs(l), uid)...)
	if err != nil {
		return fmt.Errorf("update time log uid=%s: %w", uid, err)
	}
	return requireRow(res)
}

// GetByID returns the time log with the given local id, tombstones included.
func (s *TimeLogStore) GetByID(ctx context.Context, id int64) (*models.TimeLog, error) {
	row := s.db.queryRow(ctx, `SELECT `+timeLogColumns+` FROM time_history WHERE id = ?`, id)
	l, err := scanTimeLog(row)
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// GetByUID returns the time log with the given UID, tombstones included.
func (s *TimeLogStore) GetByUID(ctx context.Context, uid string) (*models.TimeLog, error) {
	row := s.db.queryRow(ctx, `SELECT `+timeLogColumns+` FROM time_history WHERE uid = ?`, uid)
	l, err := scanTimeLog(row)
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// Active returns the most recent open entry (no end time), or ErrNoActiveEntry.
func (s *TimeLogStore) Active(ctx context.Context) (*models.TimeLog, error) {
	row := s.db.queryRow(ctx, `SELECT `+timeLogColumns+` FROM time_history
		WHERE end_time IS NULL AND deleted = 0
		ORDER BY start DESC LIMIT 1`)
	l, err := scanTimeLog(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoActiveEntry
		}
		return nil, err
	}
	return l, nil
}

// List returns time logs matching the filters, most recent first by default.
func (s *TimeLogStore) List(ctx context.Context, f Filters) ([]*models.TimeLog, error) {
	where, args := buildWhere(f)
	rows, err := s.db.query(ctx,
		`SELECT `+timeLogColumns+` FROM time_history`+where+orderClause(f, "start DESC"), args...)
	if err != nil {
		return nil, fmt.Errorf("list time logs: %w", err)
	}
	defer rows.Close()
	return collectTimeLogs(rows)
}

// ChangedSince returns every time log (tombstones included) with updated_at
// at or after since.
func (s *TimeLogStore) ChangedSince(ctx context.Context, since time.Time) ([]*models.TimeLog, error) {
	query := `SELECT ` + timeLogColumns + ` FROM time_history`
	var args []any
	if !since.IsZero() {
		query += ` WHERE updated_at >= ?`
		args = append(args, models.FormatTime(since))
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("time logs changed since: %w", err)
	}
	defer rows.Close()
	return collectTimeLogs(rows)
}

func collectTimeLogs(rows *sql.Rows) ([]*models.TimeLog, error) {
	var out []*models.TimeLog
	for rows.Next() {
		l, err := scanTimeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// HardDelete removes the row outright.
func (s *TimeLogStore) HardDelete(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, `DELETE FROM time_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete time log %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDelete tombstones the row with the given local id.
func (s *TimeLogStore) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE time_history SET deleted = 1, updated_at = ? WHERE id = ?`,
		models.FormatTime(now), id)
	if err != nil {
		return fmt.Errorf("soft delete time log %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDeleteByUID tombstones the row with the given UID.
func (s *TimeLogStore) SoftDeleteByUID(ctx context.Context, uid string, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE time_history SET deleted = 1, updated_at = ? WHERE uid = ?`,
		models.FormatTime(now), uid)
	if err != nil {
		return fmt.Errorf("soft delete time log uid=%s: %w", uid, err)
	}
	return requireRow(res)
}
