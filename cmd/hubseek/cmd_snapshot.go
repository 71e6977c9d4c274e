package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hubseek/internal/decision"
)

var (
	snapshotOutput    string
	snapshotArtifacts []string
)

// snapshotCmd exports a resumable markdown snapshot of the run state.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export a resume snapshot (latest decisions + existing artifacts)",
	Long: `Writes a markdown snapshot of the current run state under the
output root: the latest approved decisions parsed from the decision log,
the stage artifacts that exist on disk, and a ready-to-paste resume prompt
for the next session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := decision.WriteSnapshot(decision.SnapshotOptions{
			Workspace:      cfg.OutputRoot,
			OutputPath:     snapshotOutput,
			ExtraArtifacts: snapshotArtifacts,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Wrote resume snapshot to %s\n", path)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotOutput, "output", "", "Snapshot path (default: <output_root>/"+decision.DefaultSnapshotName+")")
	snapshotCmd.Flags().StringArrayVar(&snapshotArtifacts, "artifact", nil, "Extra artifact path to include (repeatable)")
}
