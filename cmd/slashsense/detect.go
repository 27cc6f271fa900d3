package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var detectTimeout time.Duration

// detectCmd classifies one utterance and prints the decision as JSON.
var detectCmd = &cobra.Command{
	Use:   "detect [utterance]",
	Short: "Classify an utterance against the command registry",
	Long: `Runs one utterance through the full detection cascade and prints the
decision as JSON: the chosen command, up to three alternatives, and the
policy action.

Example:
  slashsense detect "commit and push my changes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().DurationVar(&detectTimeout, "timeout", 2*time.Second, "Overall detection deadline")
}

func runDetect(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), detectTimeout)
	defer cancel()

	decision, err := eng.coordinator.Detect(ctx, input)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
