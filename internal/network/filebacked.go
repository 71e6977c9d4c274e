package network

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hubseek/internal/matrix"
	"hubseek/internal/softpower"
)

// FileNormalizer reads a normalized matrix the normalization collaborator
// wrote to disk, checking the shape guarantee against the input counts.
type FileNormalizer struct {
	Path string
}

func (f *FileNormalizer) Normalize(counts *matrix.Expression, _ *matrix.Metadata) (*matrix.Expression, error) {
	norm, err := matrix.ReadCounts(f.Path)
	if err != nil {
		return nil, err
	}
	if len(norm.Genes) != len(counts.Genes) || len(norm.Samples) != len(counts.Samples) {
		return nil, shapeError("normalize", fmt.Sprintf(
			"expected %dx%d to match input, got %dx%d",
			len(counts.Genes), len(counts.Samples), len(norm.Genes), len(norm.Samples)))
	}
	for j, s := range counts.Samples {
		if norm.Samples[j] != s {
			return nil, shapeError("normalize", fmt.Sprintf(
				"sample column %d is %q, input has %q", j, norm.Samples[j], s))
		}
	}
	return norm, nil
}

// FileCurveFitter reads a previously fitted soft-threshold curve table.
// Rows for other network types are kept: the power stage selects per type.
type FileCurveFitter struct {
	Path string
}

func (f *FileCurveFitter) FitCurve(_ *matrix.Expression, powers []int, _ softpower.NetworkType) (softpower.Curve, error) {
	header, rows, err := readNamedTable(f.Path)
	if err != nil {
		return nil, err
	}
	curve, err := softpower.CurveFromRecords(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return curve, nil
}

// FileBuilder reads module assignments and eigengenes the network
// collaborator wrote to disk. Assignment rows are gene_id,module; the
// eigengene table has a sample_id column and one ME<label> column per
// module.
type FileBuilder struct {
	AssignmentsPath string
	EigengenesPath  string
}

func (f *FileBuilder) BuildNetwork(expr *matrix.Expression, _ Params) (*Assignment, *Eigengenes, error) {
	asg, err := readAssignments(f.AssignmentsPath, expr.Genes)
	if err != nil {
		return nil, nil, err
	}
	eg, err := readEigengenes(f.EigengenesPath, expr.Samples)
	if err != nil {
		return nil, nil, err
	}
	return asg, eg, nil
}

func readAssignments(path string, genes []string) (*Assignment, error) {
	header, rows, err := readNamedTable(path)
	if err != nil {
		return nil, err
	}
	gi, mi := columnIndex(header, "gene_id"), columnIndex(header, "module")
	if gi < 0 || mi < 0 {
		return nil, shapeError("buildNetwork", path+": assignment table needs gene_id and module columns")
	}
	labels := make(map[string]int, len(rows))
	for ln, rec := range rows {
		l, err := strconv.Atoi(rec[mi])
		if err != nil || l < 0 {
			return nil, shapeError("buildNetwork", fmt.Sprintf(
				"%s row %d: module label %q is not a non-negative integer", path, ln+2, rec[mi]))
		}
		labels[rec[gi]] = l
	}
	var missing []string
	for _, g := range genes {
		if _, ok := labels[g]; !ok {
			missing = append(missing, g)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, shapeError("buildNetwork", fmt.Sprintf(
			"%s: genes without module assignment: %s", path, strings.Join(missing, ", ")))
	}
	return &Assignment{Genes: append([]string(nil), genes...), Labels: labels}, nil
}

func readEigengenes(path string, samples []string) (*Eigengenes, error) {
	header, rows, err := readNamedTable(path)
	if err != nil {
		return nil, err
	}
	si := columnIndex(header, "sample_id")
	if si < 0 {
		return nil, shapeError("buildNetwork", path+": eigengene table needs a sample_id column")
	}
	var modules []int
	var modCols []int
	for j, h := range header {
		if j == si {
			continue
		}
		l, err := strconv.Atoi(strings.TrimPrefix(h, "ME"))
		if err != nil || l < 0 {
			return nil, shapeError("buildNetwork", fmt.Sprintf(
				"%s: eigengene column %q is not ME<label>", path, h))
		}
		modules = append(modules, l)
		modCols = append(modCols, j)
	}
	if len(rows) != len(samples) {
		return nil, shapeError("buildNetwork", fmt.Sprintf(
			"%s: expected %d sample rows, got %d", path, len(samples), len(rows)))
	}
	data := make([][]float64, len(rows))
	for i, rec := range rows {
		if rec[si] != samples[i] {
			return nil, shapeError("buildNetwork", fmt.Sprintf(
				"%s row %d: sample %q, working order has %q", path, i+2, rec[si], samples[i]))
		}
		row := make([]float64, len(modCols))
		for k, j := range modCols {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, shapeError("buildNetwork", fmt.Sprintf(
					"%s row %d: non-numeric eigengene value %q", path, i+2, rec[j]))
			}
			row[k] = v
		}
		data[i] = row
	}
	return &Eigengenes{Samples: append([]string(nil), samples...), Modules: modules, Data: data}, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// readNamedTable reads a delimited table via the matrix loader's format
// rules and splits off the header row.
func readNamedTable(path string) ([]string, [][]string, error) {
	rows, err := matrix.ReadTable(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 1 {
		return nil, nil, &matrix.InputError{Path: path, Reason: "empty table"}
	}
	return rows[0], rows[1:], nil
}
