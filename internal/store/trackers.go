package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// TrackerStore provides CRUD over trackers and their local-only entries.
type TrackerStore struct {
	db *DB
}

const trackerColumns = `id, uid, title, type, category, created, tags, notes,
	updated_at, deleted`

func scanTracker(scanner interface{ Scan(...any) error }) (*models.Tracker, error) {
	var (
		t                              models.Tracker
		created                        sql.NullString
		category, tags, notes          sql.NullString
		updatedAt                      string
		deleted                        int
	)

	err := scanner.Scan(
		&t.ID, &t.UID, &t.Title, &t.Type, &category, &created,
		&tags, &notes, &updatedAt, &deleted,
	)
	if err != nil {
		return nil, err
	}

	t.Category = category.String
	createdTime, err := scanTime(created)
	if err != nil {
		return nil, fmt.Errorf("parse tracker created: %w", err)
	}
	t.Created = createdTime
	t.Tags = tags.String
	t.Notes = notes.String
	t.UpdatedAt = mustTime(updatedAt)
	t.Deleted = deleted != 0
	return &t, nil
}

func trackerArgs(t *models.Tracker) []any {
	return []any{
		t.Title, t.Type, t.Category, nullTime(t.Created), t.Tags, t.Notes,
		timeValue(t.UpdatedAt), boolValue(t.Deleted),
	}
}

// Insert stores a new tracker and records its local id on t.
func (s *TrackerStore) Insert(ctx context.Context, t *models.Tracker) (int64, error) {
	if t.UID == "" {
		return 0, ErrUIDRequired
	}
	res, err := s.db.exec(ctx, `
		INSERT INTO trackers (uid, title, type, category, created, tags, notes,
			updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{t.UID}, trackerArgs(t)...)...)
	if err != nil {
		return 0, fmt.Errorf("insert tracker: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("tracker insert id: %w", err)
	}
	t.ID = id
	return id, nil
}

const trackerUpdateSQL = `
	UPDATE trackers SET title = ?, type = ?, category = ?, created = ?,
		tags = ?, notes = ?, updated_at = ?, deleted = ?`

// Update overwrites every mutable column of the row with local id.
func (s *TrackerStore) Update(ctx context.Context, id int64, t *models.Tracker) error {
	res, err := s.db.exec(ctx, trackerUpdateSQL+` WHERE id = ?`,
		append(trackerArgs(t), id)...)
	if err != nil {
		return fmt.Errorf("update tracker %d: %w", id, err)
	}
	return requireRow(res)
}

// UpdateByUID overwrites every mutable column of the row with the given UID.
func (s *TrackerStore) UpdateByUID(ctx context.Context, uid string, t *models.Tracker) error {
	res, err := s.db.exec(ctx, trackerUpdateSQL+` WHERE uid = ?`,
		append(trackerArgs(t), uid)...)
	if err != nil {
		return fmt.Errorf("update tracker uid=%s: %w", uid, err)
	}
	return requireRow(res)
}

// GetByID returns the tracker with the given local id, tombstones included.
func (s *TrackerStore) GetByID(ctx context.Context, id int64) (*models.Tracker, error) {
	row := s.db.queryRow(ctx, `SELECT `+trackerColumns+` FROM trackers WHERE id = ?`, id)
	t, err := scanTracker(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// GetByUID returns the tracker with the given UID, tombstones included.
func (s *TrackerStore) GetByUID(ctx context.Context, uid string) (*models.Tracker, error) {
	row := s.db.queryRow(ctx, `SELECT `+trackerColumns+` FROM trackers WHERE uid = ?`, uid)
	t, err := scanTracker(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// List returns trackers matching the filters.
func (s *TrackerStore) List(ctx context.Context, f Filters) ([]*models.Tracker, error) {
	where, args := buildWhere(f)
	rows, err := s.db.query(ctx,
		`SELECT `+trackerColumns+` FROM trackers`+where+orderClause(f, "title ASC"), args...)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	defer rows.Close()

	var out []*models.Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ChangedSince returns every tracker (tombstones included) with updated_at
// at or after since.
func (s *TrackerStore) ChangedSince(ctx context.Context, since time.Time) ([]*models.Tracker, error) {
	query := `SELECT ` + trackerColumns + ` FROM trackers`
	var args []any
	if !since.IsZero() {
		query += ` WHERE updated_at >= ?`
		args = append(args, models.FormatTime(since))
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trackers changed since: %w", err)
	}
	defer rows.Close()

	var out []*models.Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// HardDelete removes the tracker and, via foreign keys, its entries and goals.
func (s *TrackerStore) HardDelete(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, `DELETE FROM trackers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tracker %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDelete tombstones the row with the given local id.
func (s *TrackerStore) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE trackers SET deleted = 1, updated_at = ? WHERE id = ?`,
		models.FormatTime(now), id)
	if err != nil {
		return fmt.Errorf("soft delete tracker %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDeleteByUID tombstones the row with the given UID.
func (s *TrackerStore) SoftDeleteByUID(ctx context.Context, uid string, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE trackers SET deleted = 1, updated_at = ? WHERE uid = ?`,
		models.FormatTime(now), uid)
	if err != nil {
		return fmt.Errorf("soft delete tracker uid=%s: %w", uid, err)
	}
	return requireRow(res)
}

// AddEntry records a logged value against a tracker. Entries never sync.
func (s *TrackerStore) AddEntry(ctx context.Context, e *models.TrackerEntry) (int64, error) {
	res, err := s.db.exec(ctx, `
		INSERT INTO tracker_entries (tracker_id, timestamp, value)
		VALUES (?, ?, ?)
	`, e.TrackerID, timeValue(e.Timestamp), e.Value)
	if err != nil {
		return 0, fmt.Errorf("insert tracker entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("tracker entry insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

// Entries returns a tracker's entries within [from, to), oldest first.
// Zero bounds are open.
func (s *TrackerStore) Entries(ctx context.Context, trackerID int64, from, to time.Time) ([]*models.TrackerEntry, error) {
	query := `SELECT id, tracker_id, timestamp, value FROM tracker_entries
		WHERE tracker_id = ?`
	args := []any{trackerID}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, timeValue(from))
	}
	if !to.IsZero() {
		query += ` AND timestamp < ?`
		args = append(args, timeValue(to))
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracker entries: %w", err)
	}
	defer rows.Close()

	var out []*models.TrackerEntry
	for rows.Next() {
		var (
			e  models.TrackerEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.TrackerID, &ts, &e.Value); err != nil {
			return nil, fmt.Errorf("scan tracker entry: %w", err)
		}
		e.Timestamp = mustTime(ts)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteEntry hard-deletes a single tracker entry.
func (s *TrackerStore) DeleteEntry(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, `DELETE FROM tracker_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tracker entry %d: %w", id, err)
	}
	return requireRow(res)
}
