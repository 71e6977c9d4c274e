package matrix

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadCounts loads a genes x samples table. The first column is the gene
// identifier, remaining columns are samples. Tab or comma separated, .gz
// transparently decompressed. Every cell must be numeric.
func ReadCounts(path string) (*Expression, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, &InputError{Path: path, Reason: "expected a header row and at least one gene row"}
	}
	header := rows[0]
	if len(header) < 2 {
		return nil, &InputError{Path: path, Reason: "expected a gene id column and at least one sample column"}
	}
	samples := header[1:]
	genes := make([]string, 0, len(rows)-1)
	data := make([][]float64, 0, len(rows)-1)
	for ln, rec := range rows[1:] {
		if len(rec) != len(header) {
			return nil, &InputError{Path: path,
				Reason: fmt.Sprintf("row %d: expected %d fields, got %d", ln+2, len(header), len(rec))}
		}
		vals := make([]float64, len(samples))
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, &InputError{Path: path,
					Reason: fmt.Sprintf("row %d, sample %s: non-numeric value %q", ln+2, samples[j], cell)}
			}
			vals[j] = v
		}
		genes = append(genes, rec[0])
		data = append(data, vals)
	}
	expr, err := NewExpression(genes, samples, data)
	if err != nil {
		if ie, ok := err.(*InputError); ok {
			ie.Path = path
		}
		return nil, err
	}
	return expr, nil
}

// ReadMetadata loads a sample metadata table. The first column is the sample
// identifier, remaining columns are categorical trait columns.
func ReadMetadata(path string) (*Metadata, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, &InputError{Path: path, Reason: "expected a header row and at least one sample row"}
	}
	header := rows[0]
	if len(header) < 2 {
		return nil, &InputError{Path: path, Reason: "expected a sample id column and at least one trait column"}
	}
	columns := header[1:]
	samples := make([]string, 0, len(rows)-1)
	values := make(map[string]map[string]string, len(rows)-1)
	for ln, rec := range rows[1:] {
		if len(rec) != len(header) {
			return nil, &InputError{Path: path,
				Reason: fmt.Sprintf("row %d: expected %d fields, got %d", ln+2, len(header), len(rec))}
		}
		row := make(map[string]string, len(columns))
		for j, cell := range rec[1:] {
			row[columns[j]] = strings.TrimSpace(cell)
		}
		samples = append(samples, rec[0])
		values[rec[0]] = row
	}
	md, err := NewMetadata(samples, columns, values)
	if err != nil {
		if ie, ok := err.(*InputError); ok {
			ie.Path = path
		}
		return nil, err
	}
	return md, nil
}

// ReadTable reads a delimited file into records, sniffing tab vs comma from
// the header line and decompressing .gz input.
func ReadTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	var src io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, &InputError{Path: path, Reason: "bad gzip stream: " + err.Error()}
		}
		defer gz.Close()
		src = gz
	}

	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, &InputError{Path: path, Reason: err.Error()}
	}
	text := string(raw)
	comma := ','
	if line, _, ok := strings.Cut(text, "\n"); ok || line != "" {
		if strings.Count(line, "\t") > strings.Count(line, ",") {
			comma = '\t'
		}
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &InputError{Path: path, Reason: err.Error()}
	}
	return rows, nil
}

// FormatFloat renders matrix values the way the exported tables expect:
// fixed six decimal places, NaN as the literal NA.
func FormatFloat(v float64) string {
	if v != v {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Rows renders the matrix as table records with a gene_id leading column,
// ready for the artifact writer.
func (m *Expression) Rows() ([]string, [][]string) {
	header := append([]string{"gene_id"}, m.Samples...)
	rows := make([][]string, len(m.Genes))
	for i, g := range m.Genes {
		rec := make([]string, len(m.Samples)+1)
		rec[0] = g
		for j, v := range m.Data[i] {
			rec[j+1] = FormatFloat(v)
		}
		rows[i] = rec
	}
	return header, rows
}
