package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"hubseek/internal/config"
	"hubseek/internal/matrix"
	"hubseek/internal/qc"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// formatP renders p-values and FDRs in compact scientific notation.
func formatP(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// qcSummary renders the stage1 audit summary: counts before and after,
// library-size distribution, flagged versus actually removed samples.
func qcSummary(cfg *config.Config, res *qc.Result, working *matrix.Expression) string {
	libs := make([]float64, len(res.LibrarySizes))
	for i, l := range res.LibrarySizes {
		libs[i] = l.Total
	}
	minLib, maxLib := math.Inf(1), math.Inf(-1)
	for _, v := range libs {
		if v < minLib {
			minLib = v
		}
		if v > maxLib {
			maxLib = v
		}
	}

	var b strings.Builder
	b.WriteString("# Stage 1: Sample/Gene QC\n\n")
	fmt.Fprintf(&b, "- Genes before filter: %d\n", res.GenesBefore)
	fmt.Fprintf(&b, "- Genes after filter (count >= %g in >= %.0f%% of samples): %d\n",
		cfg.QC.MinCount, cfg.QC.MinSampleFraction*100, res.GenesAfter)
	fmt.Fprintf(&b, "- Samples in input: %d\n", len(res.LibrarySizes))
	fmt.Fprintf(&b, "- Samples in working set: %d\n", len(working.Samples))
	fmt.Fprintf(&b, "- Library size range: %.0f - %.0f (mean %.0f)\n", minLib, maxLib, mean(libs))
	fmt.Fprintf(&b, "- Outlier z threshold: %g\n", cfg.QC.OutlierZThreshold)
	if len(res.OutlierCandidates) > 0 {
		fmt.Fprintf(&b, "- Outlier candidates (advisory): %s\n", strings.Join(res.OutlierCandidates, ", "))
	} else {
		b.WriteString("- Outlier candidates (advisory): none\n")
	}
	if len(cfg.QC.RemoveSamples) > 0 {
		fmt.Fprintf(&b, "- Approved removals applied: %s\n", strings.Join(cfg.QC.RemoveSamples, ", "))
	} else {
		b.WriteString("- Approved removals applied: none\n")
	}
	b.WriteString("\nOutlier flags are advisory; only the approved removal list removes samples.\n")
	return b.String()
}

// runReport renders the stage7 run report: input identities, decisions in
// force, per-stage counts, and the artifact inventory.
func runReport(cfg *config.Config, runID string, st *state) string {
	var b strings.Builder
	b.WriteString("# Stage 7: Run Report\n\n")
	if runID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", runID)
	}
	fmt.Fprintf(&b, "Config digest: %s\n\n", cfg.Digest())

	b.WriteString("## Inputs\n\n")
	fmt.Fprintf(&b, "- Expression: `%s`\n", cfg.ExpressionFile)
	fmt.Fprintf(&b, "- Metadata: `%s`\n", cfg.MetadataFile)
	fmt.Fprintf(&b, "- Normalized matrix: `%s`\n", cfg.Collaborator.NormalizedFile)
	fmt.Fprintf(&b, "- Fit curve: `%s`\n", cfg.Collaborator.FitCurveFile)
	fmt.Fprintf(&b, "- Module assignments: `%s`\n", cfg.Collaborator.AssignmentsFile)
	fmt.Fprintf(&b, "- Eigengenes: `%s`\n\n", cfg.Collaborator.EigengenesFile)

	b.WriteString("## Decisions in force\n\n")
	fmt.Fprintf(&b, "- Approved power/network type: %d / %s\n", cfg.Network.Power, cfg.Network.NetworkType)
	for _, c := range st.powerRec {
		note := ""
		if c.Fallback {
			note = " (fallback: max fit)"
		}
		fmt.Fprintf(&b, "- Recommended power for %s: %d (R2=%.3f)%s\n",
			c.NetworkType, c.Power, c.FitR2, note)
	}
	fmt.Fprintf(&b, "- Significance policy: fdr < %g, |r| >= %g\n",
		cfg.Significance.FDRCutoff, cfg.Significance.MinAbsCorrelation)
	if len(cfg.Significance.AllowedTraits) > 0 {
		fmt.Fprintf(&b, "- Allowed traits: %s\n", strings.Join(cfg.Significance.AllowedTraits, ", "))
	}
	fmt.Fprintf(&b, "- Hub policy: %s (capped view: top %d per module)\n\n", cfg.Hub.Policy, cfg.Hub.TopN)

	b.WriteString("## Counts\n\n")
	if st.qc != nil {
		fmt.Fprintf(&b, "- Genes: %d -> %d after QC\n", st.qc.GenesBefore, st.qc.GenesAfter)
		fmt.Fprintf(&b, "- Working samples: %d\n", len(st.counts.Samples))
	}
	if st.asg != nil {
		fmt.Fprintf(&b, "- Modules detected: %d\n", len(st.asg.Modules()))
	}
	if st.assoc != nil {
		fmt.Fprintf(&b, "- Module-trait pairs scored: %d\n", len(st.assoc.Records))
	}
	fmt.Fprintf(&b, "- Modules with a qualifying best trait: %d\n", len(st.best))
	fmt.Fprintf(&b, "- Genes scored for hub criteria: %d\n", len(st.scores))
	fmt.Fprintf(&b, "- Candidates (strict): %d\n", len(st.strict))
	fmt.Fprintf(&b, "- Candidates (balanced): %d\n", len(st.balanced))
	fmt.Fprintf(&b, "- Candidates (approved policy %q): %d\n\n", cfg.Hub.Policy, len(st.chosen))

	if len(st.best) > 0 {
		b.WriteString("## Best trait per module\n\n")
		for _, rec := range st.best {
			fmt.Fprintf(&b, "- Module %d: %s (r=%s, fdr=%s)\n",
				rec.Module, rec.Trait, matrix.FormatFloat(rec.Correlation), formatP(rec.FDR))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Artifacts\n\n")
	for _, name := range []string{
		"stage1_library_sizes.csv", "stage1_sample_connectivity.csv",
		"stage1_kept_genes.csv", "stage1_filtered_counts.csv", "stage1_summary.md",
		"stage2_normalization_metrics.csv", "stage2_normalized_matrix.csv",
		"stage3_pickSoftThreshold_fitIndices.csv", "stage3_power_candidates.csv",
		"stage4_module_sizes_coarse.csv", "stage4_module_assignments.csv",
		"stage4_module_eigengenes.csv",
		"stage5_trait_design.csv", "stage5_module_trait_long.csv",
		"stage5_best_trait_per_module.csv",
		"stage6_hub_scores.csv", "stage6_policy_counts.csv",
		"stage6_hub_candidates_strict.csv", "stage6_hub_candidates_balanced.csv",
		fmt.Sprintf("stage6_hub_candidates_%s_capped_top%d.csv", cfg.Hub.Policy, cfg.Hub.TopN),
	} {
		fmt.Fprintf(&b, "- `%s`\n", name)
	}
	return b.String()
}
