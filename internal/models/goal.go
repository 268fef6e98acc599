package models

import (
	"fmt"
	"strings"
)

// GoalKind discriminates the ten goal variants. Each kind stores its
// detail columns in a dedicated table joined 1:1 to the core goals row.
type GoalKind string

const (
	GoalSum         GoalKind = "sum"
	GoalCount       GoalKind = "count"
	GoalBool        GoalKind = "bool"
	GoalStreak      GoalKind = "streak"
	GoalDuration    GoalKind = "duration"
	GoalMilestone   GoalKind = "milestone"
	GoalReduction   GoalKind = "reduction"
	GoalRange       GoalKind = "range"
	GoalPercentage  GoalKind = "percentage"
	GoalReplacement GoalKind = "replacement"
)

// GoalKinds lists every known kind.
var GoalKinds = []GoalKind{
	GoalSum, GoalCount, GoalBool, GoalStreak, GoalDuration,
	GoalMilestone, GoalReduction, GoalRange, GoalPercentage, GoalReplacement,
}

// Valid reports whether k is a known goal kind.
func (k GoalKind) Valid() bool {
	for _, known := range GoalKinds {
		if k == known {
			return true
		}
	}
	return false
}

// GoalDetail holds the union of kind-specific columns. Only the fields
// relevant to the goal's kind are populated; the sync payload is the
// flattened core+detail snapshot.
type GoalDetail struct {
	Amount            *float64 `json:"amount,omitempty"`
	Unit              string   `json:"unit,omitempty"`
	TargetStreak      *int64   `json:"target_streak,omitempty"`
	Target            *float64 `json:"target,omitempty"`
	MinAmount         *float64 `json:"min_amount,omitempty"`
	MaxAmount         *float64 `json:"max_amount,omitempty"`
	RangeMode         string   `json:"mode,omitempty"`
	TargetPercentage  *float64 `json:"target_percentage,omitempty"`
	CurrentPercentage *float64 `json:"current_percentage,omitempty"`
	OldBehavior       string   `json:"old_behavior,omitempty"`
	NewBehavior       string   `json:"new_behavior,omitempty"`
}

// Goal is a target attached to a tracker. TrackerUID joins it to its
// tracker across devices; the local tracker_id foreign key is resolved on
// each side at write time.
type Goal struct {
	SyncMeta
	TrackerID  int64    `json:"-"`
	TrackerUID string   `json:"tracker_uid"`
	Title      string   `json:"title"`
	Kind       GoalKind `json:"kind"`
	Period     string   `json:"period"`
	GoalDetail
}

// GoalFields lists the synced core columns of the goals table, excluding
// the local id and the per-kind detail columns.
var GoalFields = []string{
	"uid", "tracker_uid", "title", "kind", "period", "updated_at", "deleted",
}

// Normalize validates the core fields plus the detail fields required by
// the goal's kind.
func (g *Goal) Normalize() error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return fmt.Errorf("goal title is required")
	}
	if !g.Kind.Valid() {
		return fmt.Errorf("unknown goal kind %q", g.Kind)
	}
	if g.Period == "" {
		g.Period = "day"
	}
	switch g.Period {
	case "day", "week", "month":
	default:
		return fmt.Errorf("goal period must be day, week, or month, got %q", g.Period)
	}

	switch g.Kind {
	case GoalSum, GoalCount, GoalDuration, GoalReduction:
		if g.Amount == nil {
			return fmt.Errorf("%s goal requires amount", g.Kind)
		}
		if g.Kind == GoalDuration && g.Unit == "" {
			g.Unit = "minutes"
		}
	case GoalBool:
		// no detail fields
	case GoalStreak:
		if g.TargetStreak == nil {
			return fmt.Errorf("streak goal requires target_streak")
		}
	case GoalMilestone:
		if g.Target == nil {
			return fmt.Errorf("milestone goal requires target")
		}
	case GoalRange:
		if g.MinAmount == nil || g.MaxAmount == nil {
			return fmt.Errorf("range goal requires min_amount and max_amount")
		}
		if g.RangeMode == "" {
			g.RangeMode = "goal"
		}
		if g.RangeMode != "goal" && g.RangeMode != "tracker" {
			return fmt.Errorf("range goal mode must be goal or tracker, got %q", g.RangeMode)
		}
	case GoalPercentage:
		if g.TargetPercentage == nil {
			return fmt.Errorf("percentage goal requires target_percentage")
		}
		if g.CurrentPercentage == nil {
			zero := 0.0
			g.CurrentPercentage = &zero
		}
	case GoalReplacement:
		if g.OldBehavior == "" || g.NewBehavior == "" {
			return fmt.Errorf("replacement goal requires old_behavior and new_behavior")
		}
	}
	return nil
}
