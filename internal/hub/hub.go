// Package hub turns module membership and gene significance correlations
// into a ranked hub-gene shortlist. Each module is scored only against its
// own eigengene and its own best trait; both named threshold policies are
// always computed so reviewers can compare candidate counts before one is
// approved.
package hub

import (
	"fmt"
	"math"
	"sort"

	"hubseek/internal/assoc"
	"hubseek/internal/matrix"
	"hubseek/internal/network"
	"hubseek/internal/stats"
	"hubseek/internal/traits"
)

// Score is one gene's module-membership and gene-trait correlations against
// its module's eigengene and best trait, before any thresholding.
type Score struct {
	Gene   string
	Module int
	Trait  string
	MM     float64 // correlation with the module eigengene
	MMP    float64
	GS     float64 // correlation with the module's best trait column
	GSP    float64
}

// Candidate is a shortlisted hub gene with its ranking fields. Immutable
// once exported; the field order is the export contract.
type Candidate struct {
	Gene             string
	Module           int
	Trait            string
	MM               float64
	MMP              float64
	GS               float64
	GSP              float64
	AbsMM            float64
	AbsGS            float64
	RankWithinModule int // 1-based within the module
	GlobalRank       int // 1-based across modules in ascending label order
}

// ThresholdPolicy is a named |MM|/|GS| cutoff pair.
type ThresholdPolicy struct {
	Name     string
	MinAbsMM float64
	MinAbsGS float64
}

var (
	// Strict is the uncapped production policy.
	Strict = ThresholdPolicy{Name: "strict", MinAbsMM: 0.80, MinAbsGS: 0.40}
	// Balanced trades precision for candidate volume.
	Balanced = ThresholdPolicy{Name: "balanced", MinAbsMM: 0.70, MinAbsGS: 0.30}
)

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (ThresholdPolicy, error) {
	switch name {
	case Strict.Name:
		return Strict, nil
	case Balanced.Name:
		return Balanced, nil
	}
	return ThresholdPolicy{}, fmt.Errorf("unknown hub threshold policy %q (want strict or balanced)", name)
}

// EmptyShortlistError means the chosen policy matched zero genes across all
// modules; there is no valid shortlist artifact to export.
type EmptyShortlistError struct {
	Policy ThresholdPolicy
}

func (e *EmptyShortlistError) Error() string {
	return fmt.Sprintf("empty shortlist: no gene met |MM| >= %g and |GS| >= %g under policy %q",
		e.Policy.MinAbsMM, e.Policy.MinAbsGS, e.Policy.Name)
}

// ScoreGenes computes MM/GS scores for the member genes of every module
// that has a best-trait record. Module 0 (unassigned) is never scored. The
// expression matrix sample order must match the eigengene and design row
// order.
func ScoreGenes(expr *matrix.Expression, asg *network.Assignment, eg *network.Eigengenes,
	design *traits.Design, best []assoc.Record) ([]Score, error) {

	if len(expr.Samples) != len(eg.Samples) {
		return nil, fmt.Errorf("expression has %d samples, eigengenes have %d",
			len(expr.Samples), len(eg.Samples))
	}
	for i, s := range expr.Samples {
		if eg.Samples[i] != s {
			return nil, fmt.Errorf("sample order mismatch at column %d: expression %q, eigengenes %q",
				i, s, eg.Samples[i])
		}
	}
	n := len(expr.Samples)

	var scores []Score
	for _, bt := range best {
		if bt.Module == 0 {
			continue
		}
		egCol, ok := eg.Column(bt.Module)
		if !ok {
			return nil, fmt.Errorf("no eigengene column for module %d", bt.Module)
		}
		traitCol, ok := design.Column(bt.Trait)
		if !ok {
			return nil, fmt.Errorf("trait column %q not in design matrix", bt.Trait)
		}
		for _, gene := range asg.Members(bt.Module) {
			row, ok := expr.GeneRow(gene)
			if !ok {
				return nil, fmt.Errorf("module %d member %q not in expression matrix", bt.Module, gene)
			}
			mm := stats.Pearson(row, egCol)
			gs := stats.Pearson(row, traitCol)
			scores = append(scores, Score{
				Gene:   gene,
				Module: bt.Module,
				Trait:  bt.Trait,
				MM:     mm,
				MMP:    stats.CorPValue(mm, n),
				GS:     gs,
				GSP:    stats.CorPValue(gs, n),
			})
		}
	}
	return scores, nil
}

// Shortlist applies a threshold policy and produces the ranked candidate
// list: within each module descending |MM|, then descending |GS|, then
// ascending gene identifier; global ranks concatenate modules in ascending
// label order. Returns EmptyShortlistError when nothing qualifies.
func Shortlist(scores []Score, pol ThresholdPolicy) ([]Candidate, error) {
	var cands []Candidate
	for _, s := range scores {
		absMM, absGS := math.Abs(s.MM), math.Abs(s.GS)
		if math.IsNaN(absMM) || math.IsNaN(absGS) {
			continue
		}
		if absMM < pol.MinAbsMM || absGS < pol.MinAbsGS {
			continue
		}
		cands = append(cands, Candidate{
			Gene: s.Gene, Module: s.Module, Trait: s.Trait,
			MM: s.MM, MMP: s.MMP, GS: s.GS, GSP: s.GSP,
			AbsMM: absMM, AbsGS: absGS,
		})
	}
	if len(cands) == 0 {
		return nil, &EmptyShortlistError{Policy: pol}
	}
	SortCandidates(cands)
	rank := 0
	lastModule := -1
	for i := range cands {
		if cands[i].Module != lastModule {
			lastModule = cands[i].Module
			rank = 0
		}
		rank++
		cands[i].RankWithinModule = rank
		cands[i].GlobalRank = i + 1
	}
	return cands, nil
}

// SortCandidates orders candidates by the export contract: ascending module
// label, then descending |MM|, descending |GS|, ascending gene id. The
// ordering is total, so sorting is idempotent.
func SortCandidates(cands []Candidate) {
	sort.Slice(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.Module != cb.Module {
			return ca.Module < cb.Module
		}
		if ca.AbsMM != cb.AbsMM {
			return ca.AbsMM > cb.AbsMM
		}
		if ca.AbsGS != cb.AbsGS {
			return ca.AbsGS > cb.AbsGS
		}
		return ca.Gene < cb.Gene
	})
}

// TopN is the capped per-module view: the first n candidates of each module
// by RankWithinModule. A pure projection; no stored rank value changes.
func TopN(cands []Candidate, n int) []Candidate {
	if n <= 0 {
		return nil
	}
	var out []Candidate
	for _, c := range cands {
		if c.RankWithinModule <= n {
			out = append(out, c)
		}
	}
	return out
}
