package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifelog-dev/lifelog/internal/models"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Record and inspect environment snapshots (local only)",
}

var (
	envRecordWeather   string
	envRecordAir       string
	envRecordMoon      string
	envRecordSatellite string

	envListDays int
)

var envRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Store an environment snapshot",
	RunE:  runEnvRecord,
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent environment snapshots",
	RunE:  runEnvList,
}

func init() {
	envRecordCmd.Flags().StringVar(&envRecordWeather, "weather", "", "Weather summary")
	envRecordCmd.Flags().StringVar(&envRecordAir, "air", "", "Air quality summary")
	envRecordCmd.Flags().StringVar(&envRecordMoon, "moon", "", "Moon phase")
	envRecordCmd.Flags().StringVar(&envRecordSatellite, "satellite", "", "Satellite imagery reference")
	envListCmd.Flags().IntVar(&envListDays, "days", 7, "How many days back to list")

	envCmd.AddCommand(envRecordCmd)
	envCmd.AddCommand(envListCmd)
	rootCmd.AddCommand(envCmd)
}

func runEnvRecord(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	snapshot := &models.EnvironmentData{
		Weather:    envRecordWeather,
		AirQuality: envRecordAir,
		Moon:       envRecordMoon,
		Satellite:  envRecordSatellite,
	}
	if err := rt.repos.RecordEnvironment(cmd.Context(), snapshot); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recorded snapshot %d\n", snapshot.ID)
	return nil
}

func runEnvList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	from := time.Now().AddDate(0, 0, -envListDays)
	snapshots, err := rt.repos.EnvironmentRange(cmd.Context(), from, time.Time{})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tWEATHER\tAIR\tMOON")
	for _, s := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.Timestamp.Format("2006-01-02 15:04"), s.Weather, s.AirQuality, s.Moon)
	}
	return w.Flush()
}
