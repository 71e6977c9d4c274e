package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hubseek/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	workers    int
	outputRoot string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hubseek",
	Short: "hubseek - gated WGCNA hub-gene pipeline",
	Long: `hubseek is a deterministic, rerunnable pipeline that turns a raw
gene-expression count matrix and a sample-metadata table into a ranked
hub-gene shortlist via a co-expression network model.

Human reviewers lock analysis decisions at fixed gates (outlier removal,
soft-threshold power, significance thresholds, hub policy); hubseek replays
the full pipeline against those frozen decisions and persists one set of
audited artifacts per stage. Network construction itself is an external
collaborator; hubseek consumes its tables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if outputRoot != "" {
		cfg.OutputRoot = outputRoot
	}
	return cfg, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "hubseek.yaml", "Path to the run configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Worker pool size for internal numeric fan-out (throughput only)")
	rootCmd.PersistentFlags().StringVar(&outputRoot, "out", "", "Override the configured output root")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(qcCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(associateCmd)
	rootCmd.AddCommand(hubCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(decisionCmd)
	rootCmd.AddCommand(snapshotCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
