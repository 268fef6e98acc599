package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// GoalStore provides CRUD over the goals core table and the ten per-kind
// detail tables. Core and detail rows are written in one transaction so a
// goal is never visible without its detail.
type GoalStore struct {
	db *DB
}

const goalColumns = `id, uid, tracker_id, tracker_uid, title, kind, period,
	updated_at, deleted`

// detailTable maps a goal kind to its 1:1 detail table.
func detailTable(kind models.GoalKind) (string, error) {
	switch kind {
	case models.GoalSum:
		return "goal_sum", nil
	case models.GoalCount:
		return "goal_count", nil
	case models.GoalBool:
		return "goal_bool", nil
	case models.GoalStreak:
		return "goal_streak", nil
	case models.GoalDuration:
		return "goal_duration", nil
	case models.GoalMilestone:
		return "goal_milestone", nil
	case models.GoalReduction:
		return "goal_reduction", nil
	case models.GoalRange:
		return "goal_range", nil
	case models.GoalPercentage:
		return "goal_percentage", nil
	case models.GoalReplacement:
		return "goal_replacement", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGoalKind, kind)
	}
}

func scanGoal(scanner interface{ Scan(...any) error }) (*models.Goal, error) {
	var (
		g         models.Goal
		kind      string
		updatedAt string
		deleted   int
	)
	err := scanner.Scan(
		&g.ID, &g.UID, &g.TrackerID, &g.TrackerUID, &g.Title, &kind,
		&g.Period, &updatedAt, &deleted,
	)
	if err != nil {
		return nil, err
	}
	g.Kind = models.GoalKind(kind)
	g.UpdatedAt = mustTime(updatedAt)
	g.Deleted = deleted != 0
	return &g, nil
}

// resolveTrackerID looks up the local trackers row for a cross-device
// tracker UID. Goals arriving over sync carry only the UID.
func (s *GoalStore) resolveTrackerID(ctx context.Context, uid string) (int64, error) {
	row := s.db.queryRow(ctx, `SELECT id FROM trackers WHERE uid = ?`, uid)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: tracker uid=%s", ErrTrackerNotFound, uid)
		}
		return 0, err
	}
	return id, nil
}

// Insert stores a goal and its detail row transactionally. When TrackerID
// is unset it is resolved from TrackerUID.
func (s *GoalStore) Insert(ctx context.Context, g *models.Goal) (int64, error) {
	if g.UID == "" {
		return 0, ErrUIDRequired
	}
	if g.TrackerID == 0 {
		id, err := s.resolveTrackerID(ctx, g.TrackerUID)
		if err != nil {
			return 0, err
		}
		g.TrackerID = id
	}

	tx, err := s.db.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO goals (uid, tracker_id, tracker_uid, title, kind, period,
			updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, g.UID, g.TrackerID, g.TrackerUID, g.Title, string(g.Kind), g.Period,
		timeValue(g.UpdatedAt), boolValue(g.Deleted))
	if err != nil {
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("goal insert id: %w", err)
	}
	g.ID = id

	if err := insertDetail(ctx, tx, id, g); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit goal insert: %w", err)
	}
	return id, nil
}

// insertDetail writes the kind-specific row for goal id.
func insertDetail(ctx context.Context, tx *sql.Tx, id int64, g *models.Goal) error {
	var err error
	switch g.Kind {
	case models.GoalSum:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_sum (goal_id, amount, unit) VALUES (?, ?, ?)`,
			id, *g.Amount, g.Unit)
	case models.GoalCount:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_count (goal_id, amount, unit) VALUES (?, ?, ?)`,
			id, int64(*g.Amount), g.Unit)
	case models.GoalBool:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_bool (goal_id) VALUES (?)`, id)
	case models.GoalStreak:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_streak (goal_id, target_streak) VALUES (?, ?)`,
			id, *g.TargetStreak)
	case models.GoalDuration:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_duration (goal_id, amount, unit) VALUES (?, ?, ?)`,
			id, *g.Amount, g.Unit)
	case models.GoalReduction:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_reduction (goal_id, amount, unit) VALUES (?, ?, ?)`,
			id, *g.Amount, g.Unit)
	case models.GoalMilestone:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_milestone (goal_id, target, unit) VALUES (?, ?, ?)`,
			id, *g.Target, g.Unit)
	case models.GoalRange:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_range (goal_id, min_amount, max_amount, unit, mode)
			 VALUES (?, ?, ?, ?, ?)`,
			id, *g.MinAmount, *g.MaxAmount, g.Unit, g.RangeMode)
	case models.GoalPercentage:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_percentage (goal_id, target_percentage, current_percentage)
			 VALUES (?, ?, ?)`,
			id, *g.TargetPercentage, *g.CurrentPercentage)
	case models.GoalReplacement:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO goal_replacement (goal_id, old_behavior, new_behavior)
			 VALUES (?, ?, ?)`,
			id, g.OldBehavior, g.NewBehavior)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGoalKind, g.Kind)
	}
	if err != nil {
		return fmt.Errorf("insert %s detail: %w", g.Kind, err)
	}
	return nil
}

// loadDetail populates g's detail fields from its kind table.
func (s *GoalStore) loadDetail(ctx context.Context, g *models.Goal) error {
	var err error
	switch g.Kind {
	case models.GoalSum, models.GoalDuration, models.GoalReduction:
		table, _ := detailTable(g.Kind)
		var amount float64
		var unit sql.NullString
		err = s.db.queryRow(ctx,
			`SELECT amount, unit FROM `+table+` WHERE goal_id = ?`, g.ID).
			Scan(&amount, &unit)
		if err == nil {
			g.Amount = &amount
			g.Unit = unit.String
		}
	case models.GoalCount:
		var amount int64
		var unit sql.NullString
		err = s.db.queryRow(ctx,
			`SELECT amount, unit FROM goal_count WHERE goal_id = ?`, g.ID).
			Scan(&amount, &unit)
		if err == nil {
			f := float64(amount)
			g.Amount = &f
			g.Unit = unit.String
		}
	case models.GoalBool:
		// no detail columns
		return nil
	case models.GoalStreak:
		var target int64
		err = s.db.queryRow(ctx,
			`SELECT target_streak FROM goal_streak WHERE goal_id = ?`, g.ID).
			Scan(&target)
		if err == nil {
			g.TargetStreak = &target
		}
	case models.GoalMilestone:
		var target float64
		var unit sql.NullString
		err = s.db.queryRow(ctx,
			`SELECT target, unit FROM goal_milestone WHERE goal_id = ?`, g.ID).
			Scan(&target, &unit)
		if err == nil {
			g.Target = &target
			g.Unit = unit.String
		}
	case models.GoalRange:
		var min, max float64
		var unit sql.NullString
		var mode string
		err = s.db.queryRow(ctx,
			`SELECT min_amount, max_amount, unit, mode FROM goal_range WHERE goal_id = ?`, g.ID).
			Scan(&min, &max, &unit, &mode)
		if err == nil {
			g.MinAmount = &min
			g.MaxAmount = &max
			g.Unit = unit.String
			g.RangeMode = mode
		}
	case models.GoalPercentage:
		var target, current float64
		err = s.db.queryRow(ctx,
			`SELECT target_percentage, current_percentage FROM goal_percentage WHERE goal_id = ?`, g.ID).
			Scan(&target, &current)
		if err == nil {
			g.TargetPercentage = &target
			g.CurrentPercentage = &current
		}
	case models.GoalReplacement:
		err = s.db.queryRow(ctx,
			`SELECT old_behavior, new_behavior FROM goal_replacement WHERE goal_id = ?`, g.ID).
			Scan(&g.OldBehavior, &g.NewBehavior)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGoalKind, g.Kind)
	}
	if err != nil {
		return fmt.Errorf("load %s detail for goal %d: %w", g.Kind, g.ID, err)
	}
	return nil
}

// update overwrites the core row matched by where and replaces the detail
// row wholesale. Replacing instead of updating keeps kind changes simple:
// the old kind's row is dropped with the id reused.
func (s *GoalStore) update(ctx context.Context, where string, key any, g *models.Goal) error {
	if g.TrackerID == 0 && g.TrackerUID != "" {
		id, err := s.resolveTrackerID(ctx, g.TrackerUID)
		if err != nil {
			return err
		}
		g.TrackerID = id
	}

	tx, err := s.db.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE goals SET tracker_id = ?, tracker_uid = ?, title = ?, kind = ?,
			period = ?, updated_at = ?, deleted = ?
		WHERE `+where,
		g.TrackerID, g.TrackerUID, g.Title, string(g.Kind), g.Period,
		timeValue(g.UpdatedAt), boolValue(g.Deleted), key)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM goals WHERE `+where, key).Scan(&id); err != nil {
		return fmt.Errorf("goal id after update: %w", err)
	}
	g.ID = id

	for _, kind := range models.GoalKinds {
		table, _ := detailTable(kind)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE goal_id = ?`, id); err != nil {
			return fmt.Errorf("clear %s detail: %w", kind, err)
		}
	}
	if !g.Deleted {
		if err := insertDetail(ctx, tx, id, g); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit goal update: %w", err)
	}
	return nil
}

// Update overwrites the goal with local id, detail included.
func (s *GoalStore) Update(ctx context.Context, id int64, g *models.Goal) error {
	return s.update(ctx, "id = ?", id, g)
}

// UpdateByUID overwrites the goal with the given UID, detail included.
func (s *GoalStore) UpdateByUID(ctx context.Context, uid string, g *models.Goal) error {
	return s.update(ctx, "uid = ?", uid, g)
}

// GetByID returns the goal with detail, tombstones included.
func (s *GoalStore) GetByID(ctx context.Context, id int64) (*models.Goal, error) {
	row := s.db.queryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.loadDetail(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetByUID returns the goal with detail, tombstones included.
func (s *GoalStore) GetByUID(ctx context.Context, uid string) (*models.Goal, error) {
	row := s.db.queryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE uid = ?`, uid)
	g, err := scanGoal(row)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.loadDetail(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns goals matching the filters, detail loaded.
func (s *GoalStore) List(ctx context.Context, f Filters) ([]*models.Goal, error) {
	where, args := buildWhere(f)
	rows, err := s.db.query(ctx,
		`SELECT `+goalColumns+` FROM goals`+where+orderClause(f, "id ASC"), args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	goals, err := collectGoals(rows)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		if err := s.loadDetail(ctx, g); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

// ChangedSince returns every goal (tombstones included, detail loaded) with
// updated_at at or after since. The flattened core+detail snapshot is what
// travels on the wire.
func (s *GoalStore) ChangedSince(ctx context.Context, since time.Time) ([]*models.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals`
	var args []any
	if !since.IsZero() {
		query += ` WHERE updated_at >= ?`
		args = append(args, models.FormatTime(since))
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("goals changed since: %w", err)
	}
	goals, err := collectGoals(rows)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		if g.Deleted {
			// tombstones travel without detail
			continue
		}
		if err := s.loadDetail(ctx, g); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

func collectGoals(rows *sql.Rows) ([]*models.Goal, error) {
	defer rows.Close()
	var out []*models.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// HardDelete removes the goal and, via foreign keys, its detail row.
func (s *GoalStore) HardDelete(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDelete tombstones the goal with the given local id.
func (s *GoalStore) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE goals SET deleted = 1, updated_at = ? WHERE id = ?`,
		models.FormatTime(now), id)
	if err != nil {
		return fmt.Errorf("soft delete goal %d: %w", id, err)
	}
	return requireRow(res)
}

// SoftDeleteByUID tombstones the goal with the given UID.
func (s *GoalStore) SoftDeleteByUID(ctx context.Context, uid string, now time.Time) error {
	res, err := s.db.exec(ctx,
		`UPDATE goals SET deleted = 1, updated_at = ? WHERE uid = ?`,
		models.FormatTime(now), uid)
	if err != nil {
		return fmt.Errorf("soft delete goal uid=%s: %w", uid, err)
	}
	return requireRow(res)
}
