package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifelog-dev/lifelog/internal/models"
	"github.com/lifelog-dev/lifelog/internal/store"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var (
	taskAddProject    string
	taskAddCategory   string
	taskAddDue        string
	taskAddImportance int
	taskAddNotes      string
	taskAddTags       string

	taskListStatus  string
	taskListProject string
	taskListJSON    bool
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddProject, "project", "", "Project name")
	taskAddCmd.Flags().StringVar(&taskAddCategory, "category", "", "Category")
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().IntVar(&taskAddImportance, "importance", 1, "Importance 0-5")
	taskAddCmd.Flags().StringVar(&taskAddNotes, "notes", "", "Notes")
	taskAddCmd.Flags().StringVar(&taskAddTags, "tags", "", "Comma-separated tags")

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status")
	taskListCmd.Flags().StringVar(&taskListProject, "project", "", "Filter by project")
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output in JSON format")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	now := time.Now().UTC()
	task := &models.Task{
		Title:      args[0],
		Project:    taskAddProject,
		Category:   taskAddCategory,
		Importance: taskAddImportance,
		Created:    &now,
		Notes:      taskAddNotes,
		Tags:       taskAddTags,
	}
	if taskAddDue != "" {
		due, err := time.Parse("2006-01-02", taskAddDue)
		if err != nil {
			return fmt.Errorf("invalid due date %q: %w", taskAddDue, err)
		}
		task.Due = &due
	}

	if err := rt.repos.Tasks.Add(cmd.Context(), task); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added task %d (%s)\n", task.ID, task.UID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	f := store.Filters{Where: map[string]any{}, OrderBy: "priority DESC, id ASC"}
	if taskListStatus != "" {
		f.Where["status"] = taskListStatus
	}
	if taskListProject != "" {
		f.Where["project"] = taskListProject
	}

	tasks, err := rt.repos.Tasks.Query(cmd.Context(), f)
	if err != nil {
		return err
	}

	if taskListJSON {
		return printJSON(cmd.OutOrStdout(), tasks)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tDUE\tPROJECT\tTITLE")
	for _, t := range tasks {
		due := ""
		if t.Due != nil {
			due = t.Due.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, due, t.Project, t.Title)
	}
	return w.Flush()
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	task, err := rt.repos.Tasks.GetByID(cmd.Context(), id)
	if err != nil {
		return err
	}
	task.Status = models.StatusDone
	now := time.Now().UTC()
	task.End = &now
	if err := rt.repos.Tasks.Update(cmd.Context(), id, task); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "task %d done\n", id)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.repos.Tasks.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "task %d removed\n", id)
	return nil
}
