package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifelog-dev/lifelog/internal/goalprogress"
	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/store"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage trackers, entries, and goals",
}

var (
	trackNewType     string
	trackNewCategory string

	trackLogAt string

	goalAddTitle  string
	goalAddKind   string
	goalAddPeriod string
	goalAddAmount float64
	goalAddUnit   string
	goalAddStreak int64
	goalAddTarget float64
	goalAddMin    float64
	goalAddMax    float64
	goalAddOld    string
	goalAddNew    string
)

var trackNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a tracker",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrackNew,
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trackers",
	RunE:  runTrackList,
}

var trackLogCmd = &cobra.Command{
	Use:   "log <tracker-id> <value>",
	Short: "Log a value against a tracker",
	Args:  cobra.ExactArgs(2),
	RunE:  runTrackLog,
}

var trackGoalCmd = &cobra.Command{
	Use:   "goal <tracker-id>",
	Short: "Attach a goal to a tracker",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrackGoal,
}

var trackProgressCmd = &cobra.Command{
	Use:   "progress <tracker-id>",
	Short: "Show goal progress for the current period",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrackProgress,
}

func init() {
	trackNewCmd.Flags().StringVar(&trackNewType, "type", "counter", "Tracker type")
	trackNewCmd.Flags().StringVar(&trackNewCategory, "category", "", "Category")

	trackLogCmd.Flags().StringVar(&trackLogAt, "at", "", "Timestamp (RFC 3339), default now")

	trackGoalCmd.Flags().StringVar(&goalAddTitle, "title", "", "Goal title")
	trackGoalCmd.Flags().StringVar(&goalAddKind, "kind", "", "Goal kind (sum, count, bool, streak, duration, milestone, reduction, range, percentage, replacement)")
	trackGoalCmd.Flags().StringVar(&goalAddPeriod, "period", "day", "Period (day, week, month)")
	trackGoalCmd.Flags().Float64Var(&goalAddAmount, "amount", 0, "Amount (sum, count, duration, reduction)")
	trackGoalCmd.Flags().StringVar(&goalAddUnit, "unit", "", "Unit label")
	trackGoalCmd.Flags().Int64Var(&goalAddStreak, "streak", 0, "Target streak length")
	trackGoalCmd.Flags().Float64Var(&goalAddTarget, "target", 0, "Milestone target or target percentage")
	trackGoalCmd.Flags().Float64Var(&goalAddMin, "min", 0, "Range minimum")
	trackGoalCmd.Flags().Float64Var(&goalAddMax, "max", 0, "Range maximum")
	trackGoalCmd.Flags().StringVar(&goalAddOld, "old", "", "Behavior being replaced")
	trackGoalCmd.Flags().StringVar(&goalAddNew, "new", "", "Replacement behavior")
	trackGoalCmd.MarkFlagRequired("title")
	trackGoalCmd.MarkFlagRequired("kind")

	trackCmd.AddCommand(trackNewCmd)
	trackCmd.AddCommand(trackListCmd)
	trackCmd.AddCommand(trackLogCmd)
	trackCmd.AddCommand(trackGoalCmd)
	trackCmd.AddCommand(trackProgressCmd)
	rootCmd.AddCommand(trackCmd)
}

func parseTrackerID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tracker id %q", arg)
	}
	return id, nil
}

func runTrackNew(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	now := time.Now().UTC()
	tracker := &models.Tracker{
		Title:    args[0],
		Type:     trackNewType,
		Category: trackNewCategory,
		Created:  &now,
	}
	if err := rt.repos.Trackers.Add(cmd.Context(), tracker); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added tracker %d (%s)\n", tracker.ID, tracker.UID)
	return nil
}

func runTrackList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	trackers, err := rt.repos.Trackers.Query(cmd.Context(), store.Filters{})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCATEGORY\tTITLE")
	for _, t := range trackers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Type, t.Category, t.Title)
	}
	return w.Flush()
}

func runTrackLog(cmd *cobra.Command, args []string) error {
	id, err := parseTrackerID(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q", args[1])
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entry := &models.TrackerEntry{TrackerID: id, Value: value}
	if trackLogAt != "" {
		at, err := time.Parse(time.RFC3339, trackLogAt)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", trackLogAt, err)
		}
		entry.Timestamp = at.UTC()
	}
	if err := rt.repos.AddTrackerEntry(cmd.Context(), entry); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged %.2f\n", value)
	return nil
}

func runTrackGoal(cmd *cobra.Command, args []string) error {
	id, err := parseTrackerID(args[0])
	if err != nil {
		return err
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	tracker, err := rt.repos.Trackers.GetByID(cmd.Context(), id)
	if err != nil {
		return err
	}

	goal := &models.Goal{
		TrackerID:  tracker.ID,
		TrackerUID: tracker.UID,
		Title:      goalAddTitle,
		Kind:       models.GoalKind(goalAddKind),
		Period:     goalAddPeriod,
	}
	switch goal.Kind {
	case models.GoalSum, models.GoalCount, models.GoalDuration, models.GoalReduction:
		goal.Amount = &goalAddAmount
		goal.Unit = goalAddUnit
	case models.GoalStreak:
		goal.TargetStreak = &goalAddStreak
	case models.GoalMilestone:
		goal.Target = &goalAddTarget
		goal.Unit = goalAddUnit
	case models.GoalRange:
		goal.MinAmount = &goalAddMin
		goal.MaxAmount = &goalAddMax
		goal.Unit = goalAddUnit
	case models.GoalPercentage:
		goal.TargetPercentage = &goalAddTarget
	case models.GoalReplacement:
		goal.OldBehavior = goalAddOld
		goal.NewBehavior = goalAddNew
	}

	if err := rt.repos.Goals.Add(cmd.Context(), goal); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s goal %d (%s)\n", goal.Kind, goal.ID, goal.UID)
	return nil
}

// periodStart returns the beginning of the current period in local time.
func periodStart(period string, now time.Time) time.Time {
	switch period {
	case "week":
		// weeks start Monday
		offset := (int(now.Weekday()) + 6) % 7
		day := now.AddDate(0, 0, -offset)
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
}

func runTrackProgress(cmd *cobra.Command, args []string) error {
	id, err := parseTrackerID(args[0])
	if err != nil {
		return err
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	goals, err := rt.repos.Goals.Query(ctx, store.Filters{
		Where: map[string]any{"tracker_id": id},
	})
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no goals for this tracker")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GOAL\tKIND\tCURRENT\tTARGET\tDONE")
	for _, g := range goals {
		entries, err := rt.repos.TrackerEntries(ctx, id, periodStart(g.Period, now), time.Time{})
		if err != nil {
			return err
		}
		progress, err := goalprogress.Evaluate(g, entries)
		if err != nil {
			return err
		}
		done := " "
		if progress.Achieved {
			done = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%s\n",
			g.Title, g.Kind, progress.Current, progress.Target, done)
	}
	return w.Flush()
}
