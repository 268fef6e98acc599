package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/store"
)

var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Track time",
}

var (
	timeStartCategory string
	timeStartProject  string
	timeStartTaskUID  string

	timeListJSON bool
)

var timeStartCmd = &cobra.Command{
	Use:   "start <title>",
	Short: "Start a time entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeStart,
}

var timeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running time entry",
	RunE:  runTimeStop,
}

var timeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running time entry",
	RunE:  runTimeStatus,
}

var timeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	RunE:  runTimeList,
}

func init() {
	timeStartCmd.Flags().StringVar(&timeStartCategory, "category", "", "Category")
	timeStartCmd.Flags().StringVar(&timeStartProject, "project", "", "Project")
	timeStartCmd.Flags().StringVar(&timeStartTaskUID, "task", "", "UID of the task being worked on")
	timeListCmd.Flags().BoolVar(&timeListJSON, "json", false, "Output in JSON format")

	timeCmd.AddCommand(timeStartCmd)
	timeCmd.AddCommand(timeStopCmd)
	timeCmd.AddCommand(timeStatusCmd)
	timeCmd.AddCommand(timeListCmd)
	rootCmd.AddCommand(timeCmd)
}

func runTimeStart(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entry := &models.TimeLog{
		Title:    args[0],
		Start:    time.Now().UTC(),
		Category: timeStartCategory,
		Project:  timeStartProject,
		TaskUID:  timeStartTaskUID,
	}
	if err := rt.repos.StartTimer(cmd.Context(), entry); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "started %q at %s\n",
		entry.Title, entry.Start.Format(time.Kitchen))
	return nil
}

func runTimeStop(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entry, err := rt.repos.StopTimer(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stopped %q after %.1f minutes\n",
		entry.Title, entry.DurationMinutes)
	return nil
}

func runTimeStatus(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entry, err := rt.repos.ActiveTimer(cmd.Context())
	if errors.Is(err, store.ErrNoActiveEntry) {
		fmt.Fprintln(cmd.OutOrStdout(), "no entry running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%q running for %.1f minutes\n",
		entry.Title, time.Since(entry.Start).Minutes())
	return nil
}

func runTimeList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entries, err := rt.repos.TimeLogs.Query(cmd.Context(), store.Filters{})
	if err != nil {
		return err
	}

	if timeListJSON {
		return printJSON(cmd.OutOrStdout(), entries)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTART\tMINUTES\tCATEGORY\tTITLE")
	for _, e := range entries {
		minutes := e.DurationMinutes
		if e.End == nil {
			minutes = time.Since(e.Start).Minutes()
		}
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%s\t%s\n",
			e.ID, e.Start.Format("2006-01-02 15:04"), minutes, e.Category, e.Title)
	}
	return w.Flush()
}
