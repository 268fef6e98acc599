package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusBacklog TaskStatus = "backlog"
	StatusActive  TaskStatus = "active"
	StatusDone    TaskStatus = "done"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusActive, StatusDone:
		return true
	}
	return false
}

// Task is a to-do item, optionally recurring.
type Task struct {
	SyncMeta
	Title           string     `json:"title"`
	Project         string     `json:"project,omitempty"`
	Category        string     `json:"category,omitempty"`
	Importance      int        `json:"importance"`
	Created         *time.Time `json:"created,omitempty"`
	Due             *time.Time `json:"due,omitempty"`
	Status          TaskStatus `json:"status"`
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	Priority        float64    `json:"priority"`
	RecurInterval   int        `json:"recur_interval,omitempty"`
	RecurUnit       string     `json:"recur_unit,omitempty"`
	RecurDaysOfWeek string     `json:"recur_days_of_week,omitempty"`
	RecurBase       *time.Time `json:"recur_base,omitempty"`
	Tags            string     `json:"tags,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// TaskFields lists the synced columns of the tasks table, excluding the
// local id. Order matches the insert statements in the store.
var TaskFields = []string{
	"uid", "title", "project", "category", "importance", "created", "due",
	"status", "start", "end", "priority", "recur_interval", "recur_unit",
	"recur_days_of_week", "recur_base", "tags", "notes", "updated_at", "deleted",
}

// Normalize validates and fills defaults before the task is saved.
func (t *Task) Normalize() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("task title is required")
	}
	if t.Importance < 0 || t.Importance > 5 {
		return fmt.Errorf("task importance must be between 0 and 5, got %d", t.Importance)
	}
	if t.Status == "" {
		t.Status = StatusBacklog
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown task status %q", t.Status)
	}
	if t.Priority == 0 {
		t.Priority = 1
	}
	return nil
}
