package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// WatermarkStore persists, per entity table, the timestamp of the last
// successful pull so repeated pulls are incremental. An absent watermark
// means "pull everything".
type WatermarkStore struct {
	db *DB
}

// LastSynced returns the stored watermark for table, or the zero time and
// false when no pull has succeeded yet.
func (s *WatermarkStore) LastSynced(ctx context.Context, table string) (time.Time, bool, error) {
	var raw string
	err := s.db.queryRow(ctx,
		`SELECT last_synced_at FROM sync_state WHERE table_name = ?`, table).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get watermark for %s: %w", table, err)
	}
	t, err := models.ParseTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse watermark for %s: %w", table, err)
	}
	return t, true, nil
}

// SetLastSynced advances the watermark for table. Written only after every
// upsert in a pull batch succeeded.
func (s *WatermarkStore) SetLastSynced(ctx context.Context, table string, ts time.Time) error {
	_, err := s.db.exec(ctx, `
		INSERT INTO sync_state (table_name, last_synced_at) VALUES (?, ?)
		ON CONFLICT(table_name) DO UPDATE SET last_synced_at = excluded.last_synced_at
	`, table, models.FormatTime(ts))
	if err != nil {
		return fmt.Errorf("set watermark for %s: %w", table, err)
	}
	return nil
}
