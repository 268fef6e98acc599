package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// EnvironmentStore persists local-only environment snapshots.
type EnvironmentStore struct {
	db *DB
}

const environmentColumns = `id, uid, timestamp, weather, air_quality, moon, satellite`

func scanEnvironment(scanner interface{ Scan(...any) error }) (*models.EnvironmentData, error) {
	var (
		e                             models.EnvironmentData
		ts                            string
		weather, air, moon, satellite sql.NullString
	)
	err := scanner.Scan(&e.ID, &e.UID, &ts, &weather, &air, &moon, &satellite)
	if err != nil {
		return nil, err
	}
	e.Timestamp = mustTime(ts)
	e.Weather = weather.String
	e.AirQuality = air.String
	e.Moon = moon.String
	e.Satellite = satellite.String
	return &e, nil
}

// Insert stores a snapshot and records its local id on e.
func (s *EnvironmentStore) Insert(ctx context.Context, e *models.EnvironmentData) (int64, error) {
	if e.UID == "" {
		return 0, ErrUIDRequired
	}
	res, err := s.db.exec(ctx, `
		INSERT INTO environment_data (uid, timestamp, weather, air_quality, moon, satellite)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.UID, timeValue(e.Timestamp), e.Weather, e.AirQuality, e.Moon, e.Satellite)
	if err != nil {
		return 0, fmt.Errorf("insert environment data: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("environment insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

// GetByID returns a single snapshot.
func (s *EnvironmentStore) GetByID(ctx context.Context, id int64) (*models.EnvironmentData, error) {
	row := s.db.queryRow(ctx,
		`SELECT `+environmentColumns+` FROM environment_data WHERE id = ?`, id)
	e, err := scanEnvironment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// Range returns snapshots within [from, to), oldest first. Zero bounds are
// open.
func (s *EnvironmentStore) Range(ctx context.Context, from, to time.Time) ([]*models.EnvironmentData, error) {
	query := `SELECT ` + environmentColumns + ` FROM environment_data`
	var (
		clauses []string
		args    []any
	)
	if !from.IsZero() {
		clauses = append(clauses, `timestamp >= ?`)
		args = append(args, timeValue(from))
	}
	if !to.IsZero() {
		clauses = append(clauses, `timestamp < ?`)
		args = append(args, timeValue(to))
	}
	for i, c := range clauses {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list environment data: %w", err)
	}
	defer rows.Close()

	var out []*models.EnvironmentData
	for rows.Next() {
		e, err := scanEnvironment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan environment data: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a snapshot outright; environment rows have no tombstones.
func (s *EnvironmentStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.exec(ctx, `DELETE FROM environment_data WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete environment data %d: %w", id, err)
	}
	return requireRow(res)
}
