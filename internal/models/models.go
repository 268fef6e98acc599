// Package models defines the lifelog entities and the explicit field
// manifests used when persisting and synchronizing them. Every synced entity
// embeds SyncMeta: a globally unique UID assigned once at creation, an
// updated_at stamp bumped on every local mutation, and a soft-delete
// tombstone flag. Local numeric ids are meaningful only within one database
// file and are never used as a cross-device join key.
package models

import (
	"fmt"
	"time"
)

// TimeFormat is the canonical timestamp encoding for database columns.
// Fixed-width fractional seconds keep lexicographic order equal to
// chronological order, which the watermark comparison relies on.
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

// FormatTime encodes t in the canonical column format (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime decodes a timestamp column, accepting both the canonical format
// and plain RFC 3339 for rows written by older builds.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// SyncMeta carries the cross-device identity and tombstone columns shared by
// every synced entity.
type SyncMeta struct {
	ID        int64     `json:"id,omitempty"`
	UID       string    `json:"uid"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// GetUID returns the entity's globally unique identifier.
func (m *SyncMeta) GetUID() string { return m.UID }

// SetUID assigns the UID. Must be called exactly once, at creation, on
// whichever side originates the entity.
func (m *SyncMeta) SetUID(uid string) { m.UID = uid }

// LocalID returns the locally assigned row id.
func (m *SyncMeta) LocalID() int64 { return m.ID }

// SetLocalID records the locally assigned row id after insert.
func (m *SyncMeta) SetLocalID(id int64) { m.ID = id }

// Touch bumps updated_at. The stamp is forced strictly past the previous
// value so that repeated mutations within one clock tick stay ordered.
func (m *SyncMeta) Touch(now time.Time) {
	now = now.UTC()
	if !now.After(m.UpdatedAt) {
		now = m.UpdatedAt.Add(time.Microsecond)
	}
	m.UpdatedAt = now
}

// LastUpdated returns the current updated_at stamp.
func (m *SyncMeta) LastUpdated() time.Time { return m.UpdatedAt }

// SetUpdatedAt overrides the stamp directly. Used when carrying forward a
// stored stamp before a Touch, or when a remote snapshot supplies its own.
func (m *SyncMeta) SetUpdatedAt(t time.Time) { m.UpdatedAt = t }

// MarkDeleted tombstones the entity. The row is retained so the deletion can
// be propagated to other devices.
func (m *SyncMeta) MarkDeleted(now time.Time) {
	m.Deleted = true
	m.Touch(now)
}

// IsDeleted reports whether the entity is a tombstone.
func (m *SyncMeta) IsDeleted() bool { return m.Deleted }

// Synced is implemented by every entity that participates in host/client
// synchronization.
type Synced interface {
	GetUID() string
	SetUID(string)
	LocalID() int64
	SetLocalID(int64)
	LastUpdated() time.Time
	SetUpdatedAt(time.Time)
	Touch(time.Time)
	MarkDeleted(time.Time)
	IsDeleted() bool
}
