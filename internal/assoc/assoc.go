// Package assoc scores module-trait associations: Pearson correlation of
// every module eigengene against every encoded trait column, Student-t
// p-values, and a single Benjamini-Hochberg correction across the whole
// module x trait grid. It also selects the best qualifying trait per module
// for the hub stage.
package assoc

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"hubseek/internal/network"
	"hubseek/internal/stats"
	"hubseek/internal/traits"
)

// Record is one module-trait association. Exactly one record exists per
// (module, trait column) pair.
type Record struct {
	Module      int
	Trait       string
	Correlation float64
	P           float64
	FDR         float64
}

// Table is the full association table in canonical presentation order:
// ascending FDR, then descending absolute correlation.
type Table struct {
	Records []Record
	N       int // paired sample count the p-values were computed with
}

// Policy is the caller-supplied significance policy for best-trait
// selection.
type Policy struct {
	FDRCutoff         float64  // default 0.05
	MinAbsCorrelation float64  // default 0.5
	AllowedTraits     []string // empty means all trait columns qualify
}

// DefaultPolicy mirrors the approved gate defaults.
func DefaultPolicy() Policy {
	return Policy{FDRCutoff: 0.05, MinAbsCorrelation: 0.5}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.FDRCutoff == 0 {
		p.FDRCutoff = d.FDRCutoff
	}
	if p.MinAbsCorrelation == 0 {
		p.MinAbsCorrelation = d.MinAbsCorrelation
	}
	return p
}

func (p Policy) allows(trait string) bool {
	if len(p.AllowedTraits) == 0 {
		return true
	}
	for _, t := range p.AllowedTraits {
		if t == trait {
			return true
		}
	}
	return false
}

// NoSignificantAssociationsError means no (module, trait) pair met the
// significance policy: downstream hub scoring has nothing to rank, so the
// stage halts.
type NoSignificantAssociationsError struct {
	Policy Policy
}

func (e *NoSignificantAssociationsError) Error() string {
	msg := fmt.Sprintf("no module-trait association met fdr < %g and |r| >= %g",
		e.Policy.FDRCutoff, e.Policy.MinAbsCorrelation)
	if len(e.Policy.AllowedTraits) > 0 {
		msg += " among traits " + strings.Join(e.Policy.AllowedTraits, ", ")
	}
	return msg
}

// Score correlates every eigengene column with every design column over
// paired samples (pairwise-complete), converts to two-sided p-values with
// df = N-2, and applies BH correction jointly across the full grid. The
// worker pool shards by module; output is independent of worker count.
func Score(eg *network.Eigengenes, design *traits.Design, workers int) (*Table, error) {
	if workers < 1 {
		workers = 1
	}
	if len(eg.Samples) != len(design.Samples) {
		return nil, fmt.Errorf("eigengenes have %d samples, trait design has %d",
			len(eg.Samples), len(design.Samples))
	}
	for i, s := range eg.Samples {
		if design.Samples[i] != s {
			return nil, fmt.Errorf("sample order mismatch at row %d: eigengenes %q, design %q",
				i, s, design.Samples[i])
		}
	}
	n := len(eg.Samples)
	nMod, nTrait := len(eg.Modules), len(design.Columns)
	if nMod == 0 || nTrait == 0 {
		return nil, fmt.Errorf("nothing to score: %d modules x %d traits", nMod, nTrait)
	}

	traitCols := make([][]float64, nTrait)
	for j, name := range design.Columns {
		col, _ := design.Column(name)
		traitCols[j] = col
	}

	records := make([]Record, nMod*nTrait)
	var g errgroup.Group
	g.SetLimit(workers)
	for mi := 0; mi < nMod; mi++ {
		mi := mi
		g.Go(func() error {
			egCol, _ := eg.Column(eg.Modules[mi])
			for ti := 0; ti < nTrait; ti++ {
				r := stats.Pearson(egCol, traitCols[ti])
				records[mi*nTrait+ti] = Record{
					Module:      eg.Modules[mi],
					Trait:       design.Columns[ti],
					Correlation: r,
					P:           stats.CorPValue(r, n),
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	pvals := make([]float64, len(records))
	for i, rec := range records {
		pvals[i] = rec.P
	}
	for i, adj := range stats.BenjaminiHochberg(pvals) {
		records[i].FDR = adj
	}

	sort.SliceStable(records, func(a, b int) bool {
		fa, fb := records[a].FDR, records[b].FDR
		if !fdrEqual(fa, fb) {
			return fdrLess(fa, fb)
		}
		return math.Abs(records[a].Correlation) > math.Abs(records[b].Correlation)
	})
	return &Table{Records: records, N: n}, nil
}

// NaN FDRs (undefined correlations) sort last.
func fdrLess(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

func fdrEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) == math.IsNaN(b)
	}
	return a == b
}

// BestPerModule picks, per module, the qualifying association with the
// highest |r|, ties broken by lowest FDR. Qualifying means fdr below the
// cutoff, |r| at or above the minimum, and the trait in the allowed subset.
// Modules with no qualifying association are dropped. Results are in
// ascending module-label order.
func BestPerModule(t *Table, pol Policy) ([]Record, error) {
	pol = pol.withDefaults()
	best := make(map[int]Record)
	for _, rec := range t.Records {
		if math.IsNaN(rec.Correlation) || math.IsNaN(rec.FDR) {
			continue
		}
		if rec.FDR >= pol.FDRCutoff || math.Abs(rec.Correlation) < pol.MinAbsCorrelation {
			continue
		}
		if !pol.allows(rec.Trait) {
			continue
		}
		cur, ok := best[rec.Module]
		if !ok {
			best[rec.Module] = rec
			continue
		}
		ar, ac := math.Abs(rec.Correlation), math.Abs(cur.Correlation)
		if ar > ac || (ar == ac && rec.FDR < cur.FDR) {
			best[rec.Module] = rec
		}
	}
	if len(best) == 0 {
		return nil, &NoSignificantAssociationsError{Policy: pol}
	}
	modules := make([]int, 0, len(best))
	for m := range best {
		modules = append(modules, m)
	}
	sort.Ints(modules)
	out := make([]Record, len(modules))
	for i, m := range modules {
		out[i] = best[m]
	}
	return out, nil
}
