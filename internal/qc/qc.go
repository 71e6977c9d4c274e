// Package qc implements the sample/gene quality-control stage: low-count
// gene filtering and per-sample connectivity outlier scoring over a raw
// count matrix. Outlier flagging is advisory; removal is always driven by
// the separately approved removal list, never by the flags themselves.
package qc

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"hubseek/internal/matrix"
	"hubseek/internal/stats"
)

// Params are the QC policy knobs. Zero values are replaced by defaults.
type Params struct {
	MinCount          float64 // keep threshold per cell, default 10
	MinSampleFraction float64 // fraction of samples that must pass, default 0.20
	OutlierZThreshold float64 // connectivity z below this flags a sample, default -2.5
	Workers           int     // worker pool size for the correlation matrix
}

// DefaultParams mirrors the approved gate defaults.
func DefaultParams() Params {
	return Params{MinCount: 10, MinSampleFraction: 0.20, OutlierZThreshold: -2.5, Workers: 1}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MinCount == 0 {
		p.MinCount = d.MinCount
	}
	if p.MinSampleFraction == 0 {
		p.MinSampleFraction = d.MinSampleFraction
	}
	if p.OutlierZThreshold == 0 {
		p.OutlierZThreshold = d.OutlierZThreshold
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	return p
}

// EmptyResultError reports a filtering step that removed everything where at
// least one row is required. Fatal.
type EmptyResultError struct {
	Stage  string
	Detail string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("empty result in %s: %s", e.Stage, e.Detail)
}

// SampleConnectivity is one sample's connectivity score and outlier flag.
type SampleConnectivity struct {
	Sample       string
	Connectivity float64 // row sum of the sample correlation matrix, self excluded
	Z            float64
	Outlier      bool // advisory flag, z < threshold
}

// LibrarySize is the total raw count per sample, emitted for audit.
type LibrarySize struct {
	Sample string
	Total  float64
}

// Result carries the QC stage outputs. Filtered is a new matrix; the input
// is never mutated.
type Result struct {
	Filtered          *matrix.Expression
	KeptGenes         []string
	GenesBefore       int
	GenesAfter        int
	LibrarySizes      []LibrarySize
	Connectivity      []SampleConnectivity
	OutlierCandidates []string
}

// FilterGenes keeps gene g iff count(g, s) >= MinCount in at least
// ceil(MinSampleFraction * nSamples) samples. Deterministic; returns a new
// matrix in the original gene order.
func FilterGenes(m *matrix.Expression, p Params) (*matrix.Expression, []string, error) {
	p = p.withDefaults()
	need := int(math.Ceil(p.MinSampleFraction * float64(len(m.Samples))))
	if need < 1 {
		need = 1
	}
	var kept []string
	for i, g := range m.Genes {
		passing := 0
		for _, v := range m.Data[i] {
			if v >= p.MinCount {
				passing++
			}
		}
		if passing >= need {
			kept = append(kept, g)
		}
	}
	if len(kept) == 0 {
		return nil, nil, &EmptyResultError{
			Stage:  "qc gene filter",
			Detail: fmt.Sprintf("no gene has count >= %g in at least %d samples", p.MinCount, need),
		}
	}
	filtered, err := m.SelectGenes(kept)
	if err != nil {
		return nil, nil, err
	}
	return filtered, kept, nil
}

// ScoreConnectivity computes per-sample connectivity z-scores on the
// log2(count+1) transform: pairwise Pearson correlation across samples,
// connectivity = row sum minus the self correlation, z-normalized with the
// sample standard deviation. The worker pool shards rows of the symmetric
// correlation matrix; results are identical for any worker count.
func ScoreConnectivity(m *matrix.Expression, p Params) []SampleConnectivity {
	p = p.withDefaults()
	logm := m.Log2p1()
	n := len(logm.Samples)
	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		cols[j] = logm.SampleColumn(j)
	}

	cor := make([][]float64, n)
	for i := range cor {
		cor[i] = make([]float64, n)
		cor[i][i] = 1
	}
	var g errgroup.Group
	g.SetLimit(p.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			for j := i + 1; j < n; j++ {
				r := stats.Pearson(cols[i], cols[j])
				cor[i][j] = r
				cor[j][i] = r
			}
			return nil
		})
	}
	// Workers only write disjoint cells, no error path exists.
	_ = g.Wait()

	conn := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if !math.IsNaN(cor[i][j]) {
				sum += cor[i][j]
			}
		}
		conn[i] = sum
	}
	z := stats.ZScores(conn)

	out := make([]SampleConnectivity, n)
	for i := 0; i < n; i++ {
		out[i] = SampleConnectivity{
			Sample:       m.Samples[i],
			Connectivity: conn[i],
			Z:            z[i],
			Outlier:      z[i] < p.OutlierZThreshold,
		}
	}
	return out
}

// Run performs the full QC stage: metadata alignment, gene filtering and
// connectivity scoring. The returned outlier candidates are advisory; the
// caller applies the approved removal list separately.
func Run(m *matrix.Expression, md *matrix.Metadata, p Params) (*Result, *matrix.Metadata, error) {
	p = p.withDefaults()
	aligned, err := matrix.Align(m, md)
	if err != nil {
		return nil, nil, err
	}
	if len(m.Samples) == 0 {
		return nil, nil, &EmptyResultError{Stage: "qc", Detail: "expression matrix has no samples"}
	}

	filtered, kept, err := FilterGenes(m, p)
	if err != nil {
		return nil, nil, err
	}

	libs := make([]LibrarySize, len(m.Samples))
	for j, s := range m.Samples {
		total := 0.0
		for i := range m.Data {
			total += m.Data[i][j]
		}
		libs[j] = LibrarySize{Sample: s, Total: total}
	}

	conn := ScoreConnectivity(filtered, p)
	var outliers []string
	for _, c := range conn {
		if c.Outlier {
			outliers = append(outliers, c.Sample)
		}
	}

	res := &Result{
		Filtered:          filtered,
		KeptGenes:         kept,
		GenesBefore:       len(m.Genes),
		GenesAfter:        len(kept),
		LibrarySizes:      libs,
		Connectivity:      conn,
		OutlierCandidates: outliers,
	}
	return res, aligned, nil
}
