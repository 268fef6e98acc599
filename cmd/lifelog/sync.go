package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the outbound queue and pull changes from the host",
	Long: `Push every locally queued change to the host, then pull each synced
table down and apply it. Only meaningful in client mode; local and host
installs have nothing to sync.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.mode.ShouldSync() {
		fmt.Fprintf(cmd.OutOrStdout(), "mode %q writes directly; nothing to sync\n", rt.mode)
		return nil
	}

	ctx := cmd.Context()
	if err := rt.repos.SyncNow(ctx); err != nil {
		return err
	}

	remaining, err := rt.queue.Len(ctx)
	if err != nil {
		return err
	}
	if remaining > 0 {
		fmt.Fprintf(cmd.OutOrStdout(),
			"sync finished with %d entries still queued (host unreachable?)\n", remaining)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "sync complete")
	return nil
}
