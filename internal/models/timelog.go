package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeLog is one tracked block of time, open while End is nil.
type TimeLog struct {
	SyncMeta
	Title             string     `json:"title"`
	Start             time.Time  `json:"start"`
	End               *time.Time `json:"end,omitempty"`
	DurationMinutes   float64    `json:"duration_minutes,omitempty"`
	TaskUID           string     `json:"task_uid,omitempty"`
	Category          string     `json:"category,omitempty"`
	Project           string     `json:"project,omitempty"`
	Tags              string     `json:"tags,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	DistractedMinutes float64    `json:"distracted_minutes"`
}

// TimeLogFields lists the synced columns of the time_history table,
// excluding the local id.
var TimeLogFields = []string{
	"uid", "title", "start", "end", "duration_minutes", "task_uid",
	"category", "project", "tags", "notes", "distracted_minutes",
	"updated_at", "deleted",
}

// Normalize validates and fills defaults before the entry is saved.
func (l *TimeLog) Normalize() error {
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" {
		return fmt.Errorf("time entry title is required")
	}
	if l.Start.IsZero() {
		return fmt.Errorf("time entry start is required")
	}
	if l.End != nil {
		if l.End.Before(l.Start) {
			return fmt.Errorf("time entry end %s precedes start %s", l.End, l.Start)
		}
		if l.DurationMinutes == 0 {
			l.DurationMinutes = l.End.Sub(l.Start).Minutes()
		}
	}
	return nil
}

// Close stamps the end of an open entry and computes its duration.
func (l *TimeLog) Close(end time.Time) {
	e := end.UTC()
	l.End = &e
	l.DurationMinutes = e.Sub(l.Start).Minutes()
}
