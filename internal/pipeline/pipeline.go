// Package pipeline sequences the QC, power-selection, association and
// hub-scoring engines against a frozen set of approved gate decisions.
// Control flow is strictly serial: each stage validates its preconditions,
// computes, and persists its artifacts before the next stage starts. Any
// stage failure halts the run; completed stages' artifacts stay intact and
// the failing stage writes nothing.
package pipeline

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"hubseek/internal/artifact"
	"hubseek/internal/assoc"
	"hubseek/internal/config"
	"hubseek/internal/hub"
	"hubseek/internal/matrix"
	"hubseek/internal/network"
	"hubseek/internal/qc"
	"hubseek/internal/softpower"
	"hubseek/internal/store"
	"hubseek/internal/traits"
)

// Collaborators are the external black boxes the core consumes. Production
// runs use the file-backed implementations in internal/network; tests
// inject fakes.
type Collaborators struct {
	Normalizer  network.Normalizer
	CurveFitter network.CurveFitter
	Builder     network.Builder
}

// Pipeline drives one full run.
type Pipeline struct {
	cfg      *config.Config
	collab   Collaborators
	log      *zap.Logger
	store    *artifact.Store
	registry *store.Registry // nil disables run registration
	runID    string
}

// New validates the configuration and prepares the artifact store.
func New(cfg *config.Config, collab Collaborators, log *zap.Logger, registry *store.Registry) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if collab.Normalizer == nil || collab.CurveFitter == nil || collab.Builder == nil {
		return nil, fmt.Errorf("all three collaborators are required")
	}
	st, err := artifact.NewStore(cfg.OutputRoot)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, collab: collab, log: log, store: st, registry: registry}, nil
}

// state carries stage outputs forward. Each stage reads prior fields as
// immutable inputs and fills its own.
type state struct {
	counts   *matrix.Expression // raw counts, QC-filtered genes, working samples
	md       *matrix.Metadata   // aligned to working sample order
	qc       *qc.Result
	working  *matrix.Expression // normalized expression, working samples
	curve    softpower.Curve
	powerRec []softpower.Candidate
	asg      *network.Assignment
	eg       *network.Eigengenes
	design   *traits.Design
	assoc    *assoc.Table
	best     []assoc.Record
	scores   []hub.Score
	chosen   []hub.Candidate
	balanced []hub.Candidate
	strict   []hub.Candidate
}

type stage struct {
	name string
	run  func(*state) error
}

// Run executes the whole pipeline. The returned error names the failing
// stage; the caller maps it to a non-zero exit.
func (p *Pipeline) Run() error {
	return p.RunThrough("stage7_report")
}

// RunThrough executes the stage sequence from the top through the named
// stage, inclusive. Later stages always depend on earlier ones, so a partial
// run is a prefix, never a slice.
func (p *Pipeline) RunThrough(last string) error {
	stages := []stage{
		{"stage1_qc", p.stageQC},
		{"stage2_normalize", p.stageNormalize},
		{"stage3_softpower", p.stageSoftPower},
		{"stage4_network", p.stageNetwork},
		{"stage5_association", p.stageAssociation},
		{"stage6_hub", p.stageHub},
		{"stage7_report", p.stageReport},
	}
	end := -1
	for i, s := range stages {
		if s.name == last {
			end = i
		}
	}
	if end < 0 {
		return fmt.Errorf("unknown stage %q", last)
	}

	if p.registry != nil {
		id, err := p.registry.BeginRun(p.cfg.Digest(), p.cfg.OutputRoot)
		if err != nil {
			return err
		}
		p.runID = id
	}

	st := &state{}
	for _, s := range stages[:end+1] {
		p.log.Info("stage starting", zap.String("stage", s.name))
		if err := s.run(st); err != nil {
			p.log.Error("stage failed", zap.String("stage", s.name), zap.Error(err))
			if p.registry != nil {
				_ = p.registry.FinishRun(p.runID, "failed")
			}
			return fmt.Errorf("%s: %w", s.name, err)
		}
		p.log.Info("stage completed", zap.String("stage", s.name))
		if p.registry != nil {
			if err := p.registry.CompleteStage(p.runID, s.name, ""); err != nil {
				return err
			}
		}
	}
	if p.registry != nil {
		if err := p.registry.FinishRun(p.runID, "completed"); err != nil {
			return err
		}
	}
	return nil
}

// stageQC loads the inputs, aligns metadata, filters genes, scores sample
// connectivity, then applies the approved removal list. The automatic
// outlier flags are persisted for audit but never remove a sample.
func (p *Pipeline) stageQC(st *state) error {
	counts, err := matrix.ReadCounts(p.cfg.ExpressionFile)
	if err != nil {
		return err
	}
	md, err := matrix.ReadMetadata(p.cfg.MetadataFile)
	if err != nil {
		return err
	}
	params := qc.Params{
		MinCount:          p.cfg.QC.MinCount,
		MinSampleFraction: p.cfg.QC.MinSampleFraction,
		OutlierZThreshold: p.cfg.QC.OutlierZThreshold,
		Workers:           p.cfg.Workers,
	}
	res, aligned, err := qc.Run(counts, md, params)
	if err != nil {
		return err
	}

	working := res.Filtered
	if len(p.cfg.QC.RemoveSamples) > 0 {
		working, err = working.DropSamples(p.cfg.QC.RemoveSamples)
		if err != nil {
			return err
		}
		if len(working.Samples) == 0 {
			return &qc.EmptyResultError{Stage: "qc sample removal", Detail: "approved removal list drops every sample"}
		}
	}
	aligned, err = aligned.Reorder(working.Samples)
	if err != nil {
		return err
	}
	p.log.Info("qc finished",
		zap.Int("genes_before", res.GenesBefore),
		zap.Int("genes_after", res.GenesAfter),
		zap.Strings("outlier_candidates", res.OutlierCandidates),
		zap.Strings("removed_samples", p.cfg.QC.RemoveSamples))

	libRows := make([][]string, len(res.LibrarySizes))
	for i, l := range res.LibrarySizes {
		libRows[i] = []string{l.Sample, matrix.FormatFloat(l.Total)}
	}
	if err := p.store.WriteTable("stage1_library_sizes.csv",
		[]string{"sample_id", "total_counts"}, libRows); err != nil {
		return err
	}
	connRows := make([][]string, len(res.Connectivity))
	for i, c := range res.Connectivity {
		connRows[i] = []string{c.Sample, matrix.FormatFloat(c.Connectivity),
			matrix.FormatFloat(c.Z), strconv.FormatBool(c.Outlier)}
	}
	if err := p.store.WriteTable("stage1_sample_connectivity.csv",
		[]string{"sample_id", "connectivity", "z_score", "outlier_candidate"}, connRows); err != nil {
		return err
	}
	geneRows := make([][]string, len(res.KeptGenes))
	for i, g := range res.KeptGenes {
		geneRows[i] = []string{g}
	}
	if err := p.store.WriteTable("stage1_kept_genes.csv", []string{"gene_id"}, geneRows); err != nil {
		return err
	}
	header, rows := working.Rows()
	if err := p.store.WriteTable("stage1_filtered_counts.csv", header, rows); err != nil {
		return err
	}
	if err := p.store.WriteText("stage1_summary.md", qcSummary(p.cfg, res, working)); err != nil {
		return err
	}

	st.counts = working
	st.md = aligned
	st.qc = res
	return nil
}

// stageNormalize hands the working counts to the normalization collaborator
// and checks the shape guarantee.
func (p *Pipeline) stageNormalize(st *state) error {
	norm, err := p.collab.Normalizer.Normalize(st.counts, st.md)
	if err != nil {
		return err
	}
	rows := make([][]string, len(norm.Samples))
	for j, s := range norm.Samples {
		col := norm.SampleColumn(j)
		rows[j] = []string{s, matrix.FormatFloat(mean(col)), matrix.FormatFloat(stddev(col))}
	}
	if err := p.store.WriteTable("stage2_normalization_metrics.csv",
		[]string{"sample_id", "mean_expression", "sd_expression"}, rows); err != nil {
		return err
	}
	header, dataRows := norm.Rows()
	if err := p.store.WriteTable("stage2_normalized_matrix.csv", header, dataRows); err != nil {
		return err
	}
	st.working = norm
	return nil
}

// stageSoftPower reads the externally fitted curve and records the engine's
// recommendation next to the approved power. The two are distinct by
// design and may disagree.
func (p *Pipeline) stageSoftPower(st *state) error {
	nt, err := softpower.ParseNetworkType(p.cfg.Network.NetworkType)
	if err != nil {
		return err
	}
	curve, err := p.collab.CurveFitter.FitCurve(st.working, nil, nt)
	if err != nil {
		return err
	}
	if len(curve) == 0 {
		return fmt.Errorf("soft-threshold collaborator returned an empty fit curve")
	}
	rec := softpower.Select(curve, p.cfg.Network.FitTarget, p.log)

	curveRows := make([][]string, len(curve))
	for i, pt := range curve {
		curveRows[i] = []string{strconv.Itoa(pt.Power), string(pt.NetworkType),
			matrix.FormatFloat(pt.FitR2), matrix.FormatFloat(pt.MeanConnectivity)}
	}
	if err := p.store.WriteTable("stage3_pickSoftThreshold_fitIndices.csv",
		[]string{"power", "network_type", "fit_r2", "mean_connectivity"}, curveRows); err != nil {
		return err
	}
	candRows := make([][]string, len(rec))
	for i, c := range rec {
		candRows[i] = []string{string(c.NetworkType), strconv.Itoa(c.Power),
			matrix.FormatFloat(c.FitR2), matrix.FormatFloat(c.MeanConnectivity),
			strconv.FormatBool(c.Fallback),
			strconv.Itoa(p.cfg.Network.Power), p.cfg.Network.NetworkType}
	}
	if err := p.store.WriteTable("stage3_power_candidates.csv",
		[]string{"network_type", "recommended_power", "fit_r2", "mean_connectivity",
			"fallback", "approved_power", "approved_network_type"}, candRows); err != nil {
		return err
	}
	st.curve = curve
	st.powerRec = rec
	return nil
}

// stageNetwork runs the network collaborator with the approved parameters.
func (p *Pipeline) stageNetwork(st *state) error {
	nt, _ := softpower.ParseNetworkType(p.cfg.Network.NetworkType)
	params := network.Params{
		Power:          p.cfg.Network.Power,
		NetworkType:    nt,
		TOMType:        p.cfg.Network.TOMType,
		MinModuleSize:  p.cfg.Network.MinModuleSize,
		DeepSplit:      p.cfg.Network.DeepSplit,
		MergeCutHeight: p.cfg.Network.MergeCutHeight,
	}
	asg, eg, err := p.collab.Builder.BuildNetwork(st.working, params)
	if err != nil {
		return err
	}

	sizes := asg.Sizes()
	modules := asg.Modules()
	sizeRows := make([][]string, len(modules))
	for i, m := range modules {
		sizeRows[i] = []string{strconv.Itoa(m), strconv.Itoa(sizes[m])}
	}
	if err := p.store.WriteTable("stage4_module_sizes_coarse.csv",
		[]string{"module", "gene_count"}, sizeRows); err != nil {
		return err
	}
	asgRows := make([][]string, len(asg.Genes))
	for i, g := range asg.Genes {
		asgRows[i] = []string{g, strconv.Itoa(asg.Labels[g])}
	}
	if err := p.store.WriteTable("stage4_module_assignments.csv",
		[]string{"gene_id", "module"}, asgRows); err != nil {
		return err
	}
	egHeader := []string{"sample_id"}
	for _, m := range eg.Modules {
		egHeader = append(egHeader, "ME"+strconv.Itoa(m))
	}
	egRows := make([][]string, len(eg.Samples))
	for i, s := range eg.Samples {
		row := []string{s}
		for j := range eg.Modules {
			row = append(row, matrix.FormatFloat(eg.Data[i][j]))
		}
		egRows[i] = row
	}
	if err := p.store.WriteTable("stage4_module_eigengenes.csv", egHeader, egRows); err != nil {
		return err
	}
	st.asg = asg
	st.eg = eg
	return nil
}

// stageAssociation builds the trait design matrix and scores every module
// against every encoded trait with a joint FDR correction.
func (p *Pipeline) stageAssociation(st *state) error {
	design, err := traits.Build(st.md, p.cfg.Traits.Factors)
	if err != nil {
		return err
	}
	table, err := assoc.Score(st.eg, design, p.cfg.Workers)
	if err != nil {
		return err
	}
	policy := assoc.Policy{
		FDRCutoff:         p.cfg.Significance.FDRCutoff,
		MinAbsCorrelation: p.cfg.Significance.MinAbsCorrelation,
		AllowedTraits:     p.cfg.Significance.AllowedTraits,
	}
	best, err := assoc.BestPerModule(table, policy)
	if err != nil {
		return err
	}

	designHeader := append([]string{"sample_id"}, design.Columns...)
	designRows := make([][]string, len(design.Samples))
	for i, s := range design.Samples {
		row := []string{s}
		for j := range design.Columns {
			row = append(row, matrix.FormatFloat(design.Data[i][j]))
		}
		designRows[i] = row
	}
	if err := p.store.WriteTable("stage5_trait_design.csv", designHeader, designRows); err != nil {
		return err
	}
	longRows := make([][]string, len(table.Records))
	for i, r := range table.Records {
		longRows[i] = []string{strconv.Itoa(r.Module), r.Trait,
			matrix.FormatFloat(r.Correlation), formatP(r.P), formatP(r.FDR)}
	}
	if err := p.store.WriteTable("stage5_module_trait_long.csv",
		[]string{"module", "trait", "correlation", "p_value", "fdr"}, longRows); err != nil {
		return err
	}
	bestRows := make([][]string, len(best))
	for i, r := range best {
		bestRows[i] = []string{strconv.Itoa(r.Module), r.Trait,
			matrix.FormatFloat(r.Correlation), formatP(r.P), formatP(r.FDR)}
	}
	if err := p.store.WriteTable("stage5_best_trait_per_module.csv",
		[]string{"module", "trait", "correlation", "p_value", "fdr"}, bestRows); err != nil {
		return err
	}
	st.design = design
	st.assoc = table
	st.best = best
	return nil
}

// stageHub scores module members against their own eigengene and best
// trait, evaluates both threshold policies side by side, and exports the
// ranked shortlist for the approved policy plus the capped projection.
func (p *Pipeline) stageHub(st *state) error {
	scores, err := hub.ScoreGenes(st.working, st.asg, st.eg, st.design, st.best)
	if err != nil {
		return err
	}
	chosenPolicy, err := hub.PolicyByName(p.cfg.Hub.Policy)
	if err != nil {
		return err
	}

	// Both policies are computed every run so reviewers can compare counts;
	// only the approved policy can fail the stage.
	lists := make(map[string][]hub.Candidate, 2)
	for _, pol := range []hub.ThresholdPolicy{hub.Strict, hub.Balanced} {
		cands, err := hub.Shortlist(scores, pol)
		if err != nil {
			var empty *hub.EmptyShortlistError
			if pol.Name == chosenPolicy.Name || !errors.As(err, &empty) {
				return err
			}
			cands = nil
		}
		lists[pol.Name] = cands
	}
	chosen := lists[chosenPolicy.Name]

	scoreRows := make([][]string, len(scores))
	for i, s := range scores {
		scoreRows[i] = []string{s.Gene, strconv.Itoa(s.Module), s.Trait,
			matrix.FormatFloat(s.MM), formatP(s.MMP),
			matrix.FormatFloat(s.GS), formatP(s.GSP)}
	}
	if err := p.store.WriteTable("stage6_hub_scores.csv",
		[]string{"gene_id", "module", "trait", "module_membership", "module_membership_p",
			"gene_trait_correlation", "gene_trait_p"}, scoreRows); err != nil {
		return err
	}
	countRows := [][]string{
		{hub.Strict.Name, strconv.Itoa(len(lists[hub.Strict.Name]))},
		{hub.Balanced.Name, strconv.Itoa(len(lists[hub.Balanced.Name]))},
	}
	if err := p.store.WriteTable("stage6_policy_counts.csv",
		[]string{"policy", "candidate_count"}, countRows); err != nil {
		return err
	}
	for _, pol := range []hub.ThresholdPolicy{hub.Strict, hub.Balanced} {
		name := "stage6_hub_candidates_" + pol.Name + ".csv"
		if err := p.store.WriteTable(name, candidateHeader(), candidateRows(lists[pol.Name])); err != nil {
			return err
		}
	}
	capped := hub.TopN(chosen, p.cfg.Hub.TopN)
	cappedName := fmt.Sprintf("stage6_hub_candidates_%s_capped_top%d.csv", chosenPolicy.Name, p.cfg.Hub.TopN)
	if err := p.store.WriteTable(cappedName, candidateHeader(), candidateRows(capped)); err != nil {
		return err
	}

	st.scores = scores
	st.strict = lists[hub.Strict.Name]
	st.balanced = lists[hub.Balanced.Name]
	st.chosen = chosen
	return nil
}

// stageReport writes the final run report.
func (p *Pipeline) stageReport(st *state) error {
	return p.store.WriteText("stage7_run_report.md", runReport(p.cfg, p.runID, st))
}

func candidateHeader() []string {
	return []string{"gene_id", "module", "trait",
		"module_membership", "module_membership_p",
		"gene_trait_correlation", "gene_trait_p",
		"abs_module_membership", "abs_gene_trait_correlation",
		"rank_within_module", "global_rank"}
}

func candidateRows(cands []hub.Candidate) [][]string {
	rows := make([][]string, len(cands))
	for i, c := range cands {
		rows[i] = []string{c.Gene, strconv.Itoa(c.Module), c.Trait,
			matrix.FormatFloat(c.MM), formatP(c.MMP),
			matrix.FormatFloat(c.GS), formatP(c.GSP),
			matrix.FormatFloat(c.AbsMM), matrix.FormatFloat(c.AbsGS),
			strconv.Itoa(c.RankWithinModule), strconv.Itoa(c.GlobalRank)}
	}
	return rows
}
