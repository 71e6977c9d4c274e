package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hubseek/internal/network"
	"hubseek/internal/pipeline"
	"hubseek/internal/store"
)

// runCmd executes the full pipeline against the frozen gate decisions.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full pipeline against the approved gate decisions",
	Long: `Runs all stages in order:
  1. Sample/gene QC (outlier flags advisory, approved removals applied)
  2. Variance-stabilizing normalization (collaborator table)
  3. Soft-threshold power selection (recommended vs approved tracked)
  4. Network construction (collaborator tables)
  5. Module-trait association with joint FDR correction
  6. Hub scoring and ranked shortlist (strict and balanced side by side)
  7. Run report

Each stage persists its artifacts before the next starts; the first stage
failure halts the run with a non-zero exit and leaves prior artifacts
intact.`,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	return runThrough("stage7_report")
}

// runThrough builds the pipeline from the loaded config and executes the
// stage prefix ending at last.
func runThrough(last string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Collaborator.NormalizedFile == "" || cfg.Collaborator.FitCurveFile == "" ||
		cfg.Collaborator.AssignmentsFile == "" || cfg.Collaborator.EigengenesFile == "" {
		return fmt.Errorf("collaborator tables are required: normalized_file, fit_curve_file, assignments_file, eigengenes_file")
	}
	collab := pipeline.Collaborators{
		Normalizer:  &network.FileNormalizer{Path: cfg.Collaborator.NormalizedFile},
		CurveFitter: &network.FileCurveFitter{Path: cfg.Collaborator.FitCurveFile},
		Builder: &network.FileBuilder{
			AssignmentsPath: cfg.Collaborator.AssignmentsFile,
			EigengenesPath:  cfg.Collaborator.EigengenesFile,
		},
	}

	var registry *store.Registry
	if cfg.RegistryPath != "" {
		registry, err = store.Open(cfg.RegistryPath)
		if err != nil {
			return err
		}
		defer registry.Close()
	}

	p, err := pipeline.New(cfg, collab, logger, registry)
	if err != nil {
		return err
	}
	logger.Info("pipeline starting",
		zap.String("expression", cfg.ExpressionFile),
		zap.String("metadata", cfg.MetadataFile),
		zap.String("output_root", cfg.OutputRoot),
		zap.String("through", last),
		zap.Int("workers", cfg.Workers))
	if err := p.RunThrough(last); err != nil {
		return err
	}
	logger.Info("pipeline completed", zap.String("output_root", cfg.OutputRoot))
	return nil
}

// Per-stage commands run the pipeline prefix ending at the named stage.
// Later stages always consume earlier outputs, so there is no way to run a
// stage in isolation.
var qcCmd = &cobra.Command{
	Use:   "qc",
	Short: "Run through sample/gene QC only (stage 1)",
	RunE:  func(cmd *cobra.Command, args []string) error { return runThrough("stage1_qc") },
}

var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Run through soft-threshold power selection (stages 1-3)",
	RunE:  func(cmd *cobra.Command, args []string) error { return runThrough("stage3_softpower") },
}

var associateCmd = &cobra.Command{
	Use:   "associate",
	Short: "Run through module-trait association (stages 1-5)",
	RunE:  func(cmd *cobra.Command, args []string) error { return runThrough("stage5_association") },
}

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run through hub scoring and the ranked shortlist (stages 1-6)",
	RunE:  func(cmd *cobra.Command, args []string) error { return runThrough("stage6_hub") },
}

// configCmd manages the run configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file to the --config path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", configPath)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without running anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Println("Configuration is valid.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
