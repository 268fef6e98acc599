package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifelog-dev/lifelog/internal/config"
	"github.com/lifelog-dev/lifelog/internal/store"
	"github.com/lifelog-dev/lifelog/internal/sync"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair client devices with a host",
}

var pairNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Issue a single-use pairing code (host only)",
	RunE:  runPairNew,
}

var (
	pairJoinURL  string
	pairJoinCode string
	pairJoinName string
)

var pairJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Redeem a pairing code and become a client of the host",
	RunE:  runPairJoin,
}

func init() {
	pairJoinCmd.Flags().StringVar(&pairJoinURL, "url", "", "Host base URL, e.g. http://host.local:8080")
	pairJoinCmd.Flags().StringVar(&pairJoinCode, "code", "", "Pairing code issued by the host")
	pairJoinCmd.Flags().StringVar(&pairJoinName, "name", "", "Name for this device")
	pairJoinCmd.MarkFlagRequired("url")
	pairJoinCmd.MarkFlagRequired("code")
	pairJoinCmd.MarkFlagRequired("name")

	pairCmd.AddCommand(pairNewCmd)
	pairCmd.AddCommand(pairJoinCmd)
	rootCmd.AddCommand(pairCmd)
}

func runPairNew(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.mode != sync.ModeHost {
		return fmt.Errorf("pair new requires deployment mode %q, configured mode is %q",
			sync.ModeHost, rt.mode)
	}

	code, err := store.NewPairCode()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := rt.db.Devices().CreatePairCode(cmd.Context(), code, now, now.Add(5*time.Minute)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pairing code: %s (valid 5 minutes, single use)\n", code)
	return nil
}

func runPairJoin(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(map[string]string{
		"code":        strings.ToUpper(pairJoinCode),
		"device_name": pairJoinName,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Post(
		strings.TrimRight(pairJoinURL, "/")+"/api/v1/pair/complete",
		"application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reach host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("pairing rejected by host: %d", resp.StatusCode)
	}

	var result struct {
		DeviceID string `json:"device_id"`
		Token    string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode pairing response: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Deployment.Mode = string(sync.ModeClient)
	cfg.Deployment.ServerURL = strings.TrimRight(pairJoinURL, "/")
	cfg.Deployment.DeviceToken = result.Token
	if err := cfg.Save(config.DefaultPath()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "paired as device %s; client mode saved to %s\n",
		result.DeviceID, config.DefaultPath())
	return nil
}
