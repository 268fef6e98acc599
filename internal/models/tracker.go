package models

import (
	"fmt"
	"strings"
	"time"
)

// Tracker is a habit or metric being tracked over time.
type Tracker struct {
	SyncMeta
	Title    string     `json:"title"`
	Type     string     `json:"type"`
	Category string     `json:"category,omitempty"`
	Created  *time.Time `json:"created,omitempty"`
	Tags     string     `json:"tags,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// TrackerFields lists the synced columns of the trackers table, excluding
// the local id.
var TrackerFields = []string{
	"uid", "title", "type", "category", "created", "tags", "notes",
	"updated_at", "deleted",
}

// Normalize validates and fills defaults before the tracker is saved.
func (t *Tracker) Normalize() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("tracker title is required")
	}
	if t.Type == "" {
		return fmt.Errorf("tracker type is required")
	}
	return nil
}

// TrackerEntry is one logged value for a tracker. Entries are local-only:
// they never sync, carry no UID, and are hard-deleted.
type TrackerEntry struct {
	ID        int64     `json:"id,omitempty"`
	TrackerID int64     `json:"tracker_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
