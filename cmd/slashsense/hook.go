package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slashsense/internal/types"
)

// hookCmd adapts the detector to an agent host's prompt-submit hook: one
// JSON event on stdin, one JSON response on stdout. The response either
// passes the prompt through untouched or attaches a suggestion as
// additional context. The hook never blocks the prompt.
var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Run as a prompt-submit hook (JSON on stdin, JSON on stdout)",
	Long: `Reads a hook event from stdin:

  {"prompt": "commit and push my changes"}

and writes a hook response to stdout. When a command is detected with
enough confidence the response carries a suggestion in additionalContext;
otherwise the prompt passes through silently. Detection failures also pass
through: a broken detector must never eat a prompt.`,
	RunE: runHook,
}

var hookTimeout time.Duration

func init() {
	hookCmd.Flags().DurationVar(&hookTimeout, "timeout", 2*time.Second, "Overall detection deadline")
}

// hookEvent is the inbound prompt-submit event. Unknown fields ignored.
type hookEvent struct {
	Prompt string `json:"prompt"`
}

// hookResponse is the outbound hook contract.
type hookResponse struct {
	Continue          bool   `json:"continue"`
	SuppressOutput    bool   `json:"suppressOutput"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

func runHook(cmd *cobra.Command, args []string) error {
	passthrough := hookResponse{Continue: true, SuppressOutput: true}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return writeHookResponse(passthrough)
	}

	var event hookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return writeHookResponse(passthrough)
	}

	if skipPrompt(event.Prompt) {
		return writeHookResponse(passthrough)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		// Registry broken: pass through rather than block the user.
		return writeHookResponse(passthrough)
	}
	defer eng.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), hookTimeout)
	defer cancel()

	decision, err := eng.coordinator.Detect(ctx, event.Prompt)
	if err != nil || decision.Chosen == nil {
		return writeHookResponse(passthrough)
	}

	switch decision.Action {
	case types.ActionAutoExecute, types.ActionAskUser:
		return writeHookResponse(hookResponse{
			Continue:          true,
			SuppressOutput:    false,
			AdditionalContext: formatSuggestion(eng, decision),
		})
	default:
		// suggest_only stays silent in hook mode: below ask threshold the
		// suggestion is more likely noise than help.
		return writeHookResponse(passthrough)
	}
}

// skipPrompt filters prompts the detector should not touch: explicit slash
// commands are already resolved, and tiny fragments carry no intent.
func skipPrompt(prompt string) bool {
	trimmed := strings.TrimSpace(prompt)
	if len(trimmed) < 3 {
		return true
	}
	return strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "#")
}

// formatSuggestion renders the detection as directive, actionable context.
func formatSuggestion(eng *engine, decision types.DetectionDecision) string {
	chosen := decision.Chosen

	action := "execute this command"
	if spec, err := eng.registry.Get(chosen.CommandID); err == nil && spec.DisplayAction != "" {
		action = spec.DisplayAction
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Type `%s` to %s (%d%% %s",
		chosen.CommandID, action, int(chosen.Confidence*100), chosen.Method)
	if chosen.LatencyMs > 0 && chosen.LatencyMs < 1.0 {
		fmt.Fprintf(&sb, ", %.2fms", chosen.LatencyMs)
	}
	sb.WriteString(")")

	// Present at most two alternatives; more is noise in a hook banner.
	alts := decision.Alternatives
	if len(alts) > 2 {
		alts = alts[:2]
	}
	if len(alts) > 0 {
		sb.WriteString("\nAlternatives:")
		for _, alt := range alts {
			fmt.Fprintf(&sb, "\n  %s (%d%%)", alt.CommandID, int(alt.Confidence*100))
		}
	}
	return sb.String()
}

func writeHookResponse(resp hookResponse) error {
	out, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
