package decision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSnapshotName is the resume snapshot file name.
const DefaultSnapshotName = "wgcna_resume_snapshot.md"

// defaultArtifacts are the run outputs worth listing in a snapshot, checked
// for existence under the workspace.
var defaultArtifacts = []string{
	DefaultLogName,
	"stage7_run_report.md",
	"stage2_normalization_metrics.csv",
	"stage3_pickSoftThreshold_fitIndices.csv",
	"stage4_module_sizes_coarse.csv",
	"stage5_module_trait_long.csv",
	"stage6_hub_candidates_strict.csv",
	"stage6_hub_candidates_strict_capped_top50.csv",
}

// SnapshotOptions configures a resume snapshot export.
type SnapshotOptions struct {
	Workspace      string   // run output root
	DecisionLog    string   // defaults to DefaultLogName under Workspace
	OutputPath     string   // defaults to DefaultSnapshotName under Workspace
	ExtraArtifacts []string // additional artifact paths to include
	Now            time.Time
}

func resolve(workspace, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// WriteSnapshot renders and writes a markdown snapshot of the run state:
// latest approved decisions, artifacts that exist on disk, and a resume
// pointer for the next session. Returns the snapshot path.
func WriteSnapshot(opts SnapshotOptions) (string, error) {
	if opts.Workspace == "" {
		return "", fmt.Errorf("snapshot: workspace required")
	}
	if opts.DecisionLog == "" {
		opts.DecisionLog = DefaultLogName
	}
	if opts.OutputPath == "" {
		opts.OutputPath = DefaultSnapshotName
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	logPath := resolve(opts.Workspace, opts.DecisionLog)
	outPath := resolve(opts.Workspace, opts.OutputPath)

	decisions, err := Parse(logPath)
	if err != nil {
		return "", err
	}

	var existing []string
	for _, a := range append(append([]string(nil), defaultArtifacts...), opts.ExtraArtifacts...) {
		p := resolve(opts.Workspace, a)
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, a)
		}
	}

	lines := []string{
		"# WGCNA Resume Snapshot",
		"",
		"Generated: " + opts.Now.Format("2006-01-02T15:04:05"),
		fmt.Sprintf("Workspace: `%s`", opts.Workspace),
		fmt.Sprintf("Decision log: `%s`", logPath),
		"",
		"## Latest Decisions",
	}
	if len(decisions) > 0 {
		start := 0
		if len(decisions) > 12 {
			start = len(decisions) - 12
		}
		for _, d := range decisions[start:] {
			lines = append(lines, fmt.Sprintf("- `%s` -> %s", d.Stage, d.Approved))
		}
	} else {
		lines = append(lines, "- No parsed decisions found.")
	}

	lines = append(lines, "", "## Available Artifacts")
	if len(existing) > 0 {
		for _, a := range existing {
			lines = append(lines, fmt.Sprintf("- `%s`", a))
		}
	} else {
		lines = append(lines, "- No known artifacts found.")
	}

	lines = append(lines,
		"",
		"## Resume Prompt",
		"Use this prompt in a new session:",
		"",
		"```text",
		fmt.Sprintf("Use `%s` and `%s` as context and continue from the latest completed stage.", outPath, logPath),
		"```",
		"")

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return outPath, nil
}
