package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"slashsense/internal/config"
	"slashsense/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "slashsense",
	Short: "slashsense - latency-bounded slash command intent detection",
	Long: `slashsense classifies free-text prompts against the workspace's slash
command registry through a tiered matcher cascade:

  Tier 1: lexical phrase/pattern matching (sub-millisecond)
  Tier 2: static-embedding cosine similarity
  Tier 3: routed LLM fallback (hard 150ms budget)

A user-owned overlay of exact phrase overrides is checked before any tier.
The result carries a confidence-derived action: auto_execute, ask_user,
suggest_only, or none.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		if configPath == "" {
			configPath = filepath.Join(workspace, ".slashsense", "config.yaml")
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			if cfg == nil {
				return err
			}
			// Threshold substitution is a warning, not a startup failure.
			logger.Warn("config degraded to defaults", zap.Error(err))
		}

		if err := logging.Initialize(workspace, verbose || cfg.Logging.DebugMode, cfg.Logging.Level, cfg.Logging.Categories, cfg.Logging.JSONFormat); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: .slashsense/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
