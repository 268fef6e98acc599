package goalprogress

import (
	"testing"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

func entries(values ...float64) []*models.TrackerEntry {
	base := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	out := make([]*models.TrackerEntry, len(values))
	for i, v := range values {
		out[i] = &models.TrackerEntry{
			Timestamp: base.AddDate(0, 0, i),
			Value:     v,
		}
	}
	return out
}

func goal(kind models.GoalKind, detail models.GoalDetail) *models.Goal {
	return &models.Goal{Kind: kind, Period: "day", GoalDetail: detail}
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestEvaluate_UnknownKind(t *testing.T) {
	if _, err := Evaluate(goal("mystery", models.GoalDetail{}), nil); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestEvaluate_Sum(t *testing.T) {
	g := goal(models.GoalSum, models.GoalDetail{Amount: f64(8)})

	p, err := Evaluate(g, entries(3, 2))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if p.Current != 5 || p.Achieved {
		t.Errorf("partial sum: %+v", p)
	}
	if p.Fraction != 5.0/8.0 {
		t.Errorf("fraction: %v", p.Fraction)
	}

	p, _ = Evaluate(g, entries(3, 2, 4))
	if !p.Achieved || p.Fraction != 1 {
		t.Errorf("met sum: %+v", p)
	}
}

func TestEvaluate_CountIgnoresValues(t *testing.T) {
	g := goal(models.GoalCount, models.GoalDetail{Amount: f64(3)})
	p, _ := Evaluate(g, entries(0.1, 900, 2))
	if p.Current != 3 || !p.Achieved {
		t.Errorf("count: %+v", p)
	}
}

func TestEvaluate_Bool(t *testing.T) {
	g := goal(models.GoalBool, models.GoalDetail{})
	if p, _ := Evaluate(g, nil); p.Achieved {
		t.Errorf("no entries should not achieve: %+v", p)
	}
	if p, _ := Evaluate(g, entries(0)); !p.Achieved {
		t.Errorf("any entry achieves, even zero-valued: %+v", p)
	}
}

func TestEvaluate_StreakBreaksOnZero(t *testing.T) {
	g := goal(models.GoalStreak, models.GoalDetail{TargetStreak: i64(3)})

	// A zero in the middle resets the trailing run
	p, _ := Evaluate(g, entries(1, 1, 0, 1, 1))
	if p.Current != 2 || p.Achieved {
		t.Errorf("broken streak: %+v", p)
	}

	p, _ = Evaluate(g, entries(0, 1, 1, 1))
	if p.Current != 3 || !p.Achieved {
		t.Errorf("trailing streak: %+v", p)
	}

	// A zero at the end means no current streak at all
	p, _ = Evaluate(g, entries(1, 1, 0))
	if p.Current != 0 {
		t.Errorf("ended streak: %+v", p)
	}
}

func TestEvaluate_ReductionInverts(t *testing.T) {
	g := goal(models.GoalReduction, models.GoalDetail{Amount: f64(2)})

	// At or under the ceiling is full compliance
	p, _ := Evaluate(g, entries(1, 1))
	if !p.Achieved || p.Fraction != 1 {
		t.Errorf("under limit: %+v", p)
	}
	p, _ = Evaluate(g, nil)
	if !p.Achieved {
		t.Errorf("nothing logged beats the ceiling: %+v", p)
	}

	p, _ = Evaluate(g, entries(3, 1))
	if p.Achieved || p.Fraction != 0.5 {
		t.Errorf("over limit: %+v", p)
	}
}

func TestEvaluate_RangeModes(t *testing.T) {
	detail := models.GoalDetail{MinAmount: f64(7), MaxAmount: f64(9)}

	// goal mode judges the period total
	g := goal(models.GoalRange, detail)
	g.RangeMode = "goal"
	p, _ := Evaluate(g, entries(4, 4))
	if !p.Achieved {
		t.Errorf("total in band: %+v", p)
	}
	p, _ = Evaluate(g, entries(4, 4, 4))
	if p.Achieved {
		t.Errorf("total over band: %+v", p)
	}

	// tracker mode judges only the latest reading
	g.RangeMode = "tracker"
	p, _ = Evaluate(g, entries(12, 8))
	if !p.Achieved || p.Current != 8 {
		t.Errorf("latest reading in band: %+v", p)
	}
	p, _ = Evaluate(g, entries(8, 12))
	if p.Achieved {
		t.Errorf("latest reading over band: %+v", p)
	}
}

func TestEvaluate_PercentagePrefersLatestEntry(t *testing.T) {
	g := goal(models.GoalPercentage, models.GoalDetail{
		TargetPercentage:  f64(90),
		CurrentPercentage: f64(40),
	})

	// Without entries the stored percentage stands
	p, _ := Evaluate(g, nil)
	if p.Current != 40 || p.Achieved {
		t.Errorf("stored percentage: %+v", p)
	}

	p, _ = Evaluate(g, entries(50, 95))
	if p.Current != 95 || !p.Achieved {
		t.Errorf("latest entry wins: %+v", p)
	}
}

func TestEvaluate_Replacement(t *testing.T) {
	g := goal(models.GoalReplacement, models.GoalDetail{OldBehavior: "snacking", NewBehavior: "walking"})
	if p, _ := Evaluate(g, nil); p.Achieved {
		t.Errorf("no practice: %+v", p)
	}
	if p, _ := Evaluate(g, entries(1)); !p.Achieved || p.Fraction != 1 {
		t.Errorf("practiced once: %+v", p)
	}
}

func TestEvaluate_MilestoneAccumulates(t *testing.T) {
	g := goal(models.GoalMilestone, models.GoalDetail{Target: f64(100)})
	p, _ := Evaluate(g, entries(40, 35))
	if p.Current != 75 || p.Achieved {
		t.Errorf("partial milestone: %+v", p)
	}
	p, _ = Evaluate(g, entries(40, 35, 25))
	if !p.Achieved {
		t.Errorf("met milestone: %+v", p)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register(models.GoalSum, func(*models.Goal, []*models.TrackerEntry) Progress { return Progress{} })
}
