// Package network defines the contracts of the external collaborators the
// core depends on (variance-stabilizing normalization, soft-threshold curve
// fitting, network construction) together with their consumed result types.
// The collaborators are black boxes: this package specifies signatures and
// guarantees only, and ships file-backed implementations that read the
// tables a collaborator run has already produced.
package network

import (
	"fmt"
	"sort"

	"hubseek/internal/matrix"
	"hubseek/internal/softpower"
)

// Assignment maps genes to module labels. Label 0 is reserved for
// unassigned/background genes. Consumed read-only.
type Assignment struct {
	Genes  []string
	Labels map[string]int
}

// Members returns the genes assigned to a module, in the assignment's gene
// order.
func (a *Assignment) Members(module int) []string {
	var out []string
	for _, g := range a.Genes {
		if a.Labels[g] == module {
			out = append(out, g)
		}
	}
	return out
}

// Modules returns the distinct module labels in ascending order.
func (a *Assignment) Modules() []int {
	seen := make(map[int]bool)
	var out []int
	for _, g := range a.Genes {
		l := a.Labels[g]
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// Sizes returns the gene count per module label.
func (a *Assignment) Sizes() map[int]int {
	sizes := make(map[int]int)
	for _, g := range a.Genes {
		sizes[a.Labels[g]]++
	}
	return sizes
}

// Eigengenes is the samples x modules summary expression matrix.
type Eigengenes struct {
	Samples []string
	Modules []int
	Data    [][]float64 // row per sample, column per module
}

// Column returns one module's eigengene profile across samples.
func (e *Eigengenes) Column(module int) ([]float64, bool) {
	for j, m := range e.Modules {
		if m == module {
			col := make([]float64, len(e.Samples))
			for i := range e.Data {
				col[i] = e.Data[i][j]
			}
			return col, true
		}
	}
	return nil, false
}

// Params are the approved module-detection parameters handed to the network
// collaborator. They are inputs, never re-derived at run time.
type Params struct {
	Power          int
	NetworkType    softpower.NetworkType
	TOMType        string
	MinModuleSize  int
	DeepSplit      int
	MergeCutHeight float64
}

// Normalizer is the variance-stabilizing normalization collaborator.
// Guarantee: same gene/sample shape as the input, deterministic for fixed
// inputs.
type Normalizer interface {
	Normalize(counts *matrix.Expression, md *matrix.Metadata) (*matrix.Expression, error)
}

// CurveFitter is the soft-threshold-curve collaborator.
type CurveFitter interface {
	FitCurve(expr *matrix.Expression, powers []int, nt softpower.NetworkType) (softpower.Curve, error)
}

// Builder is the network-construction collaborator. Guarantee: deterministic
// given identical inputs; random seed policy is the collaborator's concern.
type Builder interface {
	BuildNetwork(expr *matrix.Expression, p Params) (*Assignment, *Eigengenes, error)
}

// shapeError is a collaborator output violating its contract.
func shapeError(what string, detail string) error {
	return fmt.Errorf("collaborator contract violation (%s): %s", what, detail)
}
