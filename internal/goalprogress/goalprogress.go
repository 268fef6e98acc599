// Package goalprogress evaluates a goal against a window of tracker
// entries. Each goal kind registers its own evaluator; consumers never
// switch on kind themselves.
package goalprogress

import (
	"fmt"
	"sync"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// Progress is the outcome of evaluating a goal over one period.
type Progress struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	// Fraction is Current/Target clamped to [0, 1]; for inverted goals
	// (reduction, range) it reflects compliance instead of accumulation.
	Fraction float64 `json:"fraction"`
	Achieved bool    `json:"achieved"`
}

// Evaluator computes progress for one goal kind from the period's entries.
type Evaluator func(g *models.Goal, entries []*models.TrackerEntry) Progress

var (
	registryMu sync.RWMutex
	evaluators = make(map[models.GoalKind]Evaluator)
)

// Register adds an evaluator for a kind. Panics on duplicates; kinds are
// registered once, during init.
func Register(kind models.GoalKind, fn Evaluator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := evaluators[kind]; exists {
		panic("goalprogress: evaluator already registered: " + string(kind))
	}
	evaluators[kind] = fn
}

// Evaluate computes progress for g over entries.
func Evaluate(g *models.Goal, entries []*models.TrackerEntry) (Progress, error) {
	registryMu.RLock()
	fn, ok := evaluators[g.Kind]
	registryMu.RUnlock()
	if !ok {
		return Progress{}, fmt.Errorf("no evaluator for goal kind %q", g.Kind)
	}
	return fn(g, entries), nil
}

func sum(entries []*models.TrackerEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Value
	}
	return total
}

func fraction(current, target float64) float64 {
	if target <= 0 {
		if current > 0 {
			return 1
		}
		return 0
	}
	f := current / target
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

func init() {
	Register(models.GoalSum, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		target := *g.Amount
		current := sum(entries)
		return Progress{Current: current, Target: target,
			Fraction: fraction(current, target), Achieved: current >= target}
	})

	Register(models.GoalCount, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		target := *g.Amount
		current := float64(len(entries))
		return Progress{Current: current, Target: target,
			Fraction: fraction(current, target), Achieved: current >= target}
	})

	Register(models.GoalBool, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		var current float64
		if len(entries) > 0 {
			current = 1
		}
		return Progress{Current: current, Target: 1,
			Fraction: current, Achieved: current == 1}
	})

	Register(models.GoalStreak, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		// Entries arrive oldest-first, one per period slot; the streak is
		// the run of non-zero values ending at the latest entry.
		target := float64(*g.TargetStreak)
		var streak float64
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].Value == 0 {
				break
			}
			streak++
		}
		return Progress{Current: streak, Target: target,
			Fraction: fraction(streak, target), Achieved: streak >= target}
	})

	Register(models.GoalDuration, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		target := *g.Amount
		current := sum(entries)
		return Progress{Current: current, Target: target,
			Fraction: fraction(current, target), Achieved: current >= target}
	})

	Register(models.GoalMilestone, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		target := *g.Target
		current := sum(entries)
		return Progress{Current: current, Target: target,
			Fraction: fraction(current, target), Achieved: current >= target}
	})

	Register(models.GoalReduction, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		// Staying at or under the ceiling is success.
		limit := *g.Amount
		current := sum(entries)
		achieved := current <= limit
		f := 1.0
		if !achieved {
			f = fraction(limit, current)
		}
		return Progress{Current: current, Target: limit, Fraction: f, Achieved: achieved}
	})

	Register(models.GoalRange, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		lo, hi := *g.MinAmount, *g.MaxAmount
		var current float64
		if g.RangeMode == "tracker" && len(entries) > 0 {
			// tracker mode judges the latest reading, not the period total
			current = entries[len(entries)-1].Value
		} else {
			current = sum(entries)
		}
		achieved := current >= lo && current <= hi
		f := 0.0
		if achieved {
			f = 1.0
		} else if current < lo {
			f = fraction(current, lo)
		} else {
			f = fraction(hi, current)
		}
		return Progress{Current: current, Target: hi, Fraction: f, Achieved: achieved}
	})

	Register(models.GoalPercentage, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		target := *g.TargetPercentage
		current := *g.CurrentPercentage
		if len(entries) > 0 {
			current = entries[len(entries)-1].Value
		}
		return Progress{Current: current, Target: target,
			Fraction: fraction(current, target), Achieved: current >= target}
	})

	Register(models.GoalReplacement, func(g *models.Goal, entries []*models.TrackerEntry) Progress {
		// Any logged entry counts as practicing the new behavior.
		current := float64(len(entries))
		achieved := current > 0
		f := 0.0
		if achieved {
			f = 1.0
		}
		return Progress{Current: current, Target: 1, Fraction: f, Achieved: achieved}
	})
}
