package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slashsense/internal/registry"
)

var commandsJSON bool

// commandsCmd lists the registered commands and their trigger material.
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands the registry knows about",
	RunE:  runCommands,
}

func init() {
	commandsCmd.Flags().BoolVar(&commandsJSON, "json", false, "Print as JSON")
}

func runCommands(cmd *cobra.Command, args []string) error {
	reg := registry.New()
	if err := reg.Load(registrySources(cfg)...); err != nil {
		return err
	}

	specs := reg.All()
	if commandsJSON {
		out, err := json.MarshalIndent(specs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}

	if len(specs) == 0 {
		fmt.Println("no commands registered (check registry.markdown_dirs / registry.mappings_path)")
		return nil
	}

	for _, spec := range specs {
		fmt.Printf("%s", spec.ID)
		if spec.DisplayAction != "" {
			fmt.Printf("  (%s)", spec.DisplayAction)
		}
		fmt.Println()
		fmt.Printf("    phrases: %d  patterns: %d  prototypes: %d\n",
			len(spec.TriggerPhrases), len(spec.TriggerPatterns), len(spec.PrototypeUtterances))
	}
	fmt.Printf("\n%d commands\n", len(specs))
	return nil
}
