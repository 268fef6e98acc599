package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// DeviceStore manages paired client devices and one-shot pairing codes on
// the host. Raw bearer tokens are never stored; only their SHA-256 digest.
type DeviceStore struct {
	db *DB
}

// HashToken returns the hex digest stored for a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewPairCode returns an 8-character uppercase hex pairing code, readable
// enough to type on another device.
func NewPairCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// NewDeviceToken returns the opaque bearer token handed to a device. Only
// its hash is ever persisted.
func NewDeviceToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Device is a paired client known to the host.
type Device struct {
	ID         string
	Name       string
	TokenHash  string
	CreatedAt  time.Time
	LastSeenAt *time.Time
}

// Insert registers a newly paired device.
func (s *DeviceStore) Insert(ctx context.Context, d *Device) error {
	_, err := s.db.exec(ctx, `
		INSERT INTO devices (id, name, token_hash, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.TokenHash, timeValue(d.CreatedAt), nullTime(d.LastSeenAt))
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// GetByTokenHash returns the device whose token digest matches, or
// ErrNotFound. Serves bearer auth on every host request.
func (s *DeviceStore) GetByTokenHash(ctx context.Context, hash string) (*Device, error) {
	row := s.db.queryRow(ctx, `
		SELECT id, name, token_hash, created_at, last_seen_at
		FROM devices WHERE token_hash = ?
	`, hash)

	var (
		d         Device
		createdAt string
		lastSeen  sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Name, &d.TokenHash, &createdAt, &lastSeen); err != nil {
		return nil, notFound(err)
	}
	d.CreatedAt = mustTime(createdAt)
	seen, err := scanTime(lastSeen)
	if err != nil {
		return nil, fmt.Errorf("parse device last seen: %w", err)
	}
	d.LastSeenAt = seen
	return &d, nil
}

// List returns all paired devices, oldest first.
func (s *DeviceStore) List(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.query(ctx, `
		SELECT id, name, token_hash, created_at, last_seen_at
		FROM devices ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		var (
			d         Device
			createdAt string
			lastSeen  sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.TokenHash, &createdAt, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.CreatedAt = mustTime(createdAt)
		seen, err := scanTime(lastSeen)
		if err != nil {
			return nil, fmt.Errorf("parse device last seen: %w", err)
		}
		d.LastSeenAt = seen
		out = append(out, &d)
	}
	return out, rows.Err()
}

// TouchSeen records that a device was active at now.
func (s *DeviceStore) TouchSeen(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.exec(ctx,
		`UPDATE devices SET last_seen_at = ? WHERE id = ?`,
		models.FormatTime(now), id)
	if err != nil {
		return fmt.Errorf("touch device %s: %w", id, err)
	}
	return nil
}

// Revoke removes a device; its token stops working on the next request.
func (s *DeviceStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.exec(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("revoke device %s: %w", id, err)
	}
	return requireRow(res)
}

// CreatePairCode stores a single-use code valid until expires.
func (s *DeviceStore) CreatePairCode(ctx context.Context, code string, now, expires time.Time) error {
	_, err := s.db.exec(ctx, `
		INSERT INTO pair_codes (code, created_at, expires_at, used)
		VALUES (?, ?, ?, 0)
	`, code, models.FormatTime(now), models.FormatTime(expires))
	if err != nil {
		return fmt.Errorf("insert pair code: %w", err)
	}
	return nil
}

// ConsumePairCode marks a code used. It fails with ErrPairCodeInvalid when
// the code is unknown or already used, and ErrPairCodeExpired past its
// deadline. The check and the mark run in one transaction so a code cannot
// be redeemed twice.
func (s *DeviceStore) ConsumePairCode(ctx context.Context, code string, now time.Time) error {
	tx, err := s.db.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		expiresAt string
		used      int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT expires_at, used FROM pair_codes WHERE code = ?`, code).
		Scan(&expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPairCodeInvalid
	}
	if err != nil {
		return fmt.Errorf("lookup pair code: %w", err)
	}
	if used != 0 {
		return ErrPairCodeInvalid
	}
	expires, err := models.ParseTime(expiresAt)
	if err != nil {
		return fmt.Errorf("parse pair code expiry: %w", err)
	}
	if now.After(expires) {
		return ErrPairCodeExpired
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pair_codes SET used = 1 WHERE code = ?`, code); err != nil {
		return fmt.Errorf("mark pair code used: %w", err)
	}
	return tx.Commit()
}
