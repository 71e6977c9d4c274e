// Package matrix holds the expression matrix and sample metadata types the
// pipeline stages pass between each other, plus their on-disk table formats.
// Matrices are genes x samples and are re-sliced, never mutated in place.
package matrix

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Expression is a genes x samples value matrix. Counts on input, transformed
// values after normalization. Gene and sample identifiers are unique.
type Expression struct {
	Genes   []string
	Samples []string
	Data    [][]float64 // row per gene, column per sample
}

// InputError reports malformed input tables or duplicated/unknown
// identifiers. Always fatal.
type InputError struct {
	Path        string
	Reason      string
	Identifiers []string
}

func (e *InputError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if len(e.Identifiers) > 0 {
		msg += ": " + strings.Join(e.Identifiers, ", ")
	}
	return "input error: " + msg
}

// AlignmentError reports a sample-key mismatch between the expression matrix
// and the metadata table. Fatal; both directions are enumerated.
type AlignmentError struct {
	MissingInMetadata   []string // expression samples with no metadata row
	MissingInExpression []string // metadata samples with no expression column
}

func (e *AlignmentError) Error() string {
	var parts []string
	if len(e.MissingInMetadata) > 0 {
		parts = append(parts, fmt.Sprintf("samples missing from metadata: %s",
			strings.Join(e.MissingInMetadata, ", ")))
	}
	if len(e.MissingInExpression) > 0 {
		parts = append(parts, fmt.Sprintf("metadata samples missing from expression: %s",
			strings.Join(e.MissingInExpression, ", ")))
	}
	return "alignment error: " + strings.Join(parts, "; ")
}

// NewExpression validates identifier uniqueness and row shape.
func NewExpression(genes, samples []string, data [][]float64) (*Expression, error) {
	if dup := duplicates(genes); len(dup) > 0 {
		return nil, &InputError{Reason: "duplicate gene identifiers", Identifiers: dup}
	}
	if dup := duplicates(samples); len(dup) > 0 {
		return nil, &InputError{Reason: "duplicate sample identifiers", Identifiers: dup}
	}
	if len(data) != len(genes) {
		return nil, &InputError{Reason: fmt.Sprintf("expected %d gene rows, got %d", len(genes), len(data))}
	}
	for i, row := range data {
		if len(row) != len(samples) {
			return nil, &InputError{Reason: fmt.Sprintf("gene %s: expected %d values, got %d",
				genes[i], len(samples), len(row))}
		}
	}
	return &Expression{Genes: genes, Samples: samples, Data: data}, nil
}

func duplicates(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var dup []string
	for _, id := range ids {
		if seen[id] {
			dup = append(dup, id)
		}
		seen[id] = true
	}
	sort.Strings(dup)
	return dup
}

// SelectGenes returns a new matrix restricted to the gene rows named in keep,
// preserving the receiver's gene order. Unknown names are an InputError.
func (m *Expression) SelectGenes(keep []string) (*Expression, error) {
	want := make(map[string]bool, len(keep))
	for _, g := range keep {
		want[g] = true
	}
	var unknown []string
	for g := range want {
		if !contains(m.Genes, g) {
			unknown = append(unknown, g)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &InputError{Reason: "unknown gene identifiers", Identifiers: unknown}
	}
	genes := make([]string, 0, len(keep))
	data := make([][]float64, 0, len(keep))
	for i, g := range m.Genes {
		if want[g] {
			genes = append(genes, g)
			data = append(data, m.Data[i])
		}
	}
	return &Expression{Genes: genes, Samples: m.Samples, Data: data}, nil
}

// DropSamples returns a new matrix with the named sample columns removed.
// Names not present in the matrix are an InputError: the approved removal
// list must refer to real samples.
func (m *Expression) DropSamples(remove []string) (*Expression, error) {
	drop := make(map[string]bool, len(remove))
	for _, s := range remove {
		drop[s] = true
	}
	var unknown []string
	for s := range drop {
		if !contains(m.Samples, s) {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &InputError{Reason: "unknown sample identifiers in removal list", Identifiers: unknown}
	}
	var keepIdx []int
	for j, s := range m.Samples {
		if !drop[s] {
			keepIdx = append(keepIdx, j)
		}
	}
	samples := make([]string, len(keepIdx))
	data := make([][]float64, len(m.Genes))
	for i := range m.Data {
		row := make([]float64, len(keepIdx))
		for k, j := range keepIdx {
			row[k] = m.Data[i][j]
		}
		data[i] = row
	}
	for k, j := range keepIdx {
		samples[k] = m.Samples[j]
	}
	return &Expression{Genes: append([]string(nil), m.Genes...), Samples: samples, Data: data}, nil
}

// SampleColumn returns the values of one sample across all genes.
func (m *Expression) SampleColumn(j int) []float64 {
	col := make([]float64, len(m.Genes))
	for i := range m.Data {
		col[i] = m.Data[i][j]
	}
	return col
}

// GeneRow returns the values of one gene across all samples.
func (m *Expression) GeneRow(name string) ([]float64, bool) {
	for i, g := range m.Genes {
		if g == name {
			return m.Data[i], true
		}
	}
	return nil, false
}

// Log2p1 returns a new matrix with every value replaced by log2(v+1).
func (m *Expression) Log2p1() *Expression {
	data := make([][]float64, len(m.Data))
	for i, row := range m.Data {
		out := make([]float64, len(row))
		for j, v := range row {
			out[j] = math.Log2(v + 1)
		}
		data[i] = out
	}
	return &Expression{
		Genes:   append([]string(nil), m.Genes...),
		Samples: append([]string(nil), m.Samples...),
		Data:    data,
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Metadata maps sample identifiers to categorical trait values. Row order is
// the working sample order after alignment.
type Metadata struct {
	Samples []string
	Columns []string
	values  map[string]map[string]string
}

// NewMetadata validates one row per sample and full columns.
func NewMetadata(samples, columns []string, rows map[string]map[string]string) (*Metadata, error) {
	if dup := duplicates(samples); len(dup) > 0 {
		return nil, &InputError{Reason: "duplicate metadata sample identifiers", Identifiers: dup}
	}
	for _, s := range samples {
		row, ok := rows[s]
		if !ok {
			return nil, &InputError{Reason: "metadata row missing", Identifiers: []string{s}}
		}
		for _, c := range columns {
			if _, ok := row[c]; !ok {
				return nil, &InputError{Reason: fmt.Sprintf("metadata value missing for column %q", c), Identifiers: []string{s}}
			}
		}
	}
	return &Metadata{Samples: samples, Columns: columns, values: rows}, nil
}

// Value returns the trait value for a sample/column pair.
func (md *Metadata) Value(sample, column string) string {
	return md.values[sample][column]
}

// Reorder returns a metadata view whose rows follow the given sample order.
// Every requested sample must exist.
func (md *Metadata) Reorder(samples []string) (*Metadata, error) {
	var missing []string
	for _, s := range samples {
		if _, ok := md.values[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return nil, &InputError{Reason: "metadata rows missing for samples", Identifiers: missing}
	}
	return &Metadata{Samples: append([]string(nil), samples...), Columns: md.Columns, values: md.values}, nil
}

// Align verifies that expression sample columns and metadata rows refer to
// exactly the same sample set, and returns the metadata reordered to the
// expression column order. Any mismatch in either direction fails.
func Align(expr *Expression, md *Metadata) (*Metadata, error) {
	inMeta := make(map[string]bool, len(md.Samples))
	for _, s := range md.Samples {
		inMeta[s] = true
	}
	inExpr := make(map[string]bool, len(expr.Samples))
	for _, s := range expr.Samples {
		inExpr[s] = true
	}
	aerr := &AlignmentError{}
	for _, s := range expr.Samples {
		if !inMeta[s] {
			aerr.MissingInMetadata = append(aerr.MissingInMetadata, s)
		}
	}
	for _, s := range md.Samples {
		if !inExpr[s] {
			aerr.MissingInExpression = append(aerr.MissingInExpression, s)
		}
	}
	if len(aerr.MissingInMetadata) > 0 || len(aerr.MissingInExpression) > 0 {
		return nil, aerr
	}
	return md.Reorder(expr.Samples)
}
