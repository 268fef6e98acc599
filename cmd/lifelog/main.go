package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "lifelog",
	Short: "Lifelog - personal task, time, and habit tracking with host/client sync",
	Long: `Lifelog tracks tasks, time, habits, and goals in a local SQLite
database. One install can serve as the household host; other devices pair
with it and sync through a durable queue.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
