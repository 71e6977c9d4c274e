package matrix

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testExpression(t *testing.T) *Expression {
	t.Helper()
	m, err := NewExpression(
		[]string{"g1", "g2", "g3"},
		[]string{"s1", "s2", "s3", "s4"},
		[][]float64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
			{9, 10, 11, 12},
		})
	require.NoError(t, err)
	return m
}

func TestNewExpression(t *testing.T) {
	t.Run("duplicate gene ids", func(t *testing.T) {
		_, err := NewExpression([]string{"g1", "g1"}, []string{"s1"}, [][]float64{{1}, {2}})
		var ie *InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, []string{"g1"}, ie.Identifiers)
	})

	t.Run("duplicate sample ids", func(t *testing.T) {
		_, err := NewExpression([]string{"g1"}, []string{"s1", "s1"}, [][]float64{{1, 2}})
		var ie *InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, []string{"s1"}, ie.Identifiers)
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := NewExpression([]string{"g1"}, []string{"s1", "s2"}, [][]float64{{1}})
		var ie *InputError
		assert.ErrorAs(t, err, &ie)
	})
}

func TestSelectGenes(t *testing.T) {
	m := testExpression(t)

	sub, err := m.SelectGenes([]string{"g3", "g1"})
	require.NoError(t, err)
	// Original gene order is preserved regardless of the keep order.
	assert.Equal(t, []string{"g1", "g3"}, sub.Genes)
	assert.Equal(t, []float64{1, 2, 3, 4}, sub.Data[0])
	assert.Equal(t, []float64{9, 10, 11, 12}, sub.Data[1])

	_, err = m.SelectGenes([]string{"g1", "nope"})
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{"nope"}, ie.Identifiers)
}

func TestDropSamples(t *testing.T) {
	m := testExpression(t)

	out, err := m.DropSamples([]string{"s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3", "s4"}, out.Samples)
	assert.Equal(t, []float64{1, 3, 4}, out.Data[0])
	// Input untouched.
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, m.Samples)

	_, err = m.DropSamples([]string{"ghost"})
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{"ghost"}, ie.Identifiers)
}

func TestLog2p1(t *testing.T) {
	m := testExpression(t)
	lg := m.Log2p1()
	assert.InDelta(t, 1.0, lg.Data[0][0], 1e-12)      // log2(1+1)
	assert.InDelta(t, math.Log2(13), lg.Data[2][3], 1e-12)
	assert.Equal(t, 1.0, m.Data[0][0]) // original untouched
}

func TestAlign(t *testing.T) {
	m := testExpression(t)

	t.Run("reorders metadata to expression order", func(t *testing.T) {
		md, err := NewMetadata(
			[]string{"s4", "s3", "s2", "s1"},
			[]string{"genotype"},
			map[string]map[string]string{
				"s1": {"genotype": "WT"},
				"s2": {"genotype": "WT"},
				"s3": {"genotype": "MUT"},
				"s4": {"genotype": "MUT"},
			})
		require.NoError(t, err)
		aligned, err := Align(m, md)
		require.NoError(t, err)
		assert.Equal(t, m.Samples, aligned.Samples)
		assert.Equal(t, "MUT", aligned.Value("s4", "genotype"))
	})

	t.Run("enumerates both directions", func(t *testing.T) {
		md, err := NewMetadata(
			[]string{"s1", "s2", "s3", "s9"},
			[]string{"genotype"},
			map[string]map[string]string{
				"s1": {"genotype": "WT"},
				"s2": {"genotype": "WT"},
				"s3": {"genotype": "MUT"},
				"s9": {"genotype": "MUT"},
			})
		require.NoError(t, err)
		_, err = Align(m, md)
		var ae *AlignmentError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, []string{"s4"}, ae.MissingInMetadata)
		assert.Equal(t, []string{"s9"}, ae.MissingInExpression)
	})
}

func TestReadCounts(t *testing.T) {
	t.Run("comma separated", func(t *testing.T) {
		path := writeFile(t, "counts.csv",
			"gene_id,s1,s2\ng1,1,2\ng2,3,4\n")
		m, err := ReadCounts(path)
		require.NoError(t, err)
		want := &Expression{
			Genes:   []string{"g1", "g2"},
			Samples: []string{"s1", "s2"},
			Data:    [][]float64{{1, 2}, {3, 4}},
		}
		assert.Empty(t, cmp.Diff(want, m))
	})

	t.Run("tab separated", func(t *testing.T) {
		path := writeFile(t, "counts.tsv",
			"gene_id\ts1\ts2\ng1\t1\t2\n")
		m, err := ReadCounts(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, m.Samples)
	})

	t.Run("non-numeric cell", func(t *testing.T) {
		path := writeFile(t, "bad.csv", "gene_id,s1\ng1,abc\n")
		_, err := ReadCounts(path)
		var ie *InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, path, ie.Path)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadCounts("no/such/file.csv")
		var ie *InputError
		assert.True(t, errors.As(err, &ie))
	})
}

func TestReadMetadata(t *testing.T) {
	path := writeFile(t, "meta.csv",
		"sample_id,genotype,stage\ns1,WT,2leaf\ns2,MUT,4leaf\n")
	md, err := ReadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, md.Samples)
	assert.Equal(t, []string{"genotype", "stage"}, md.Columns)
	assert.Equal(t, "4leaf", md.Value("s2", "stage"))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.500000", FormatFloat(0.5))
	assert.Equal(t, "NA", FormatFloat(math.NaN()))
}

func TestRowsRoundTrip(t *testing.T) {
	m := testExpression(t)
	header, rows := m.Rows()
	assert.Equal(t, []string{"gene_id", "s1", "s2", "s3", "s4"}, header)
	require.Len(t, rows, 3)
	assert.Equal(t, "g2", rows[1][0])
	assert.Equal(t, "6.000000", rows[1][2])
}
