package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"hubseek/internal/decision"
)

var (
	decisionLogPath   string
	decisionStage     string
	decisionApproved  string
	decisionRationale string
	decisionOptions   []string
	decisionRisks     []string
)

// decisionCmd records and lists the human gate decisions between runs.
var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Record and list gate decisions (the human checkpoint log)",
}

var decisionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append one approved gate decision to the decision log",
	Long: `Records one human-approved decision per invocation, keeping a
consistent format across the pipeline gates (A-F).

Example:
  hubseek decision add \
    --stage "Gate C: Power and Network Type" \
    --option "signed_hybrid, power=5" \
    --option "signed, power=11" \
    --approved "signed_hybrid, power=5" \
    --rationale "Better fit/connectivity tradeoff." \
    --deferred-risk "May differ from strict signed-network conventions."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDecisionLog()
		if err != nil {
			return err
		}
		entry := decision.Entry{
			Stage:            decisionStage,
			OptionsPresented: decisionOptions,
			ApprovedOption:   decisionApproved,
			Rationale:        decisionRationale,
			DeferredRisks:    decisionRisks,
		}
		if err := decision.Append(path, entry); err != nil {
			return err
		}
		fmt.Printf("Appended decision entry to %s\n", path)
		return nil
	},
}

var decisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the approved decisions recorded so far",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDecisionLog()
		if err != nil {
			return err
		}
		decisions, err := decision.Parse(path)
		if err != nil {
			return err
		}
		if len(decisions) == 0 {
			fmt.Println("No decisions recorded.")
			return nil
		}
		for _, d := range decisions {
			fmt.Printf("%-40s -> %s\n", d.Stage, d.Approved)
		}
		return nil
	},
}

// resolveDecisionLog places the log under the configured output root unless
// an explicit path was given.
func resolveDecisionLog() (string, error) {
	if decisionLogPath != "" {
		return decisionLogPath, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.OutputRoot, decision.DefaultLogName), nil
}

func init() {
	decisionCmd.PersistentFlags().StringVar(&decisionLogPath, "log-path", "", "Decision log path (default: <output_root>/"+decision.DefaultLogName+")")
	decisionAddCmd.Flags().StringVar(&decisionStage, "stage", "", "Pipeline gate/stage name")
	decisionAddCmd.Flags().StringVar(&decisionApproved, "approved", "", "Option approved by the human reviewer")
	decisionAddCmd.Flags().StringVar(&decisionRationale, "rationale", "", "Why the approved option was selected")
	decisionAddCmd.Flags().StringArrayVar(&decisionOptions, "option", nil, "An option that was presented (repeatable)")
	decisionAddCmd.Flags().StringArrayVar(&decisionRisks, "deferred-risk", nil, "A risk deferred or accepted (repeatable)")
	_ = decisionAddCmd.MarkFlagRequired("stage")
	_ = decisionAddCmd.MarkFlagRequired("approved")
	_ = decisionAddCmd.MarkFlagRequired("rationale")

	decisionCmd.AddCommand(decisionAddCmd)
	decisionCmd.AddCommand(decisionListCmd)
}
