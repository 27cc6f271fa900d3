package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slashsense/internal/telemetry"
)

var (
	statsJSON bool
	statsTopN int
)

// statsCmd summarizes recorded detections.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded detections",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print as JSON")
	statsCmd.Flags().IntVar(&statsTopN, "top", 10, "Number of top commands to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	if !cfg.Telemetry.Enabled {
		return fmt.Errorf("telemetry is disabled in config")
	}

	store, err := telemetry.NewSQLiteStore(workspacePath(cfg.Telemetry.DatabasePath))
	if err != nil {
		return fmt.Errorf("failed to open detection database: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats(statsTopN)
	if err != nil {
		return err
	}

	if statsJSON {
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}

	fmt.Printf("detections: %d  (avg %.1fms)\n", stats.Total, stats.AvgLatencyMs)

	if len(stats.ByMethod) > 0 {
		fmt.Println("\nby method:")
		for method, n := range stats.ByMethod {
			fmt.Printf("  %-10s %d\n", method, n)
		}
	}
	if len(stats.ByAction) > 0 {
		fmt.Println("\nby action:")
		for action, n := range stats.ByAction {
			fmt.Printf("  %-13s %d\n", action, n)
		}
	}
	if len(stats.TopCommands) > 0 {
		fmt.Println("\ntop commands:")
		for _, cc := range stats.TopCommands {
			fmt.Printf("  %-30s %d\n", cc.CommandID, cc.Count)
		}
	}
	return nil
}
