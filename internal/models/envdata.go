package models

import "time"

// EnvironmentData is a snapshot of ambient conditions captured alongside the
// user's day. Rows are local-only and never synced; the UID exists so that
// exports remain stable across re-imports.
type EnvironmentData struct {
	ID         int64     `json:"id,omitempty"`
	UID        string    `json:"uid"`
	Timestamp  time.Time `json:"timestamp"`
	Weather    string    `json:"weather,omitempty"`
	AirQuality string    `json:"air_quality,omitempty"`
	Moon       string    `json:"moon,omitempty"`
	Satellite  string    `json:"satellite,omitempty"`
}

// EnvironmentFetcher retrieves current conditions from an external provider.
// Implementations live outside the core; the store only persists snapshots.
type EnvironmentFetcher interface {
	Fetch(lat, lon float64) (*EnvironmentData, error)
}
