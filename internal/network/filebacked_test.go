package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubseek/internal/matrix"
	"hubseek/internal/softpower"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func countsFixture(t *testing.T) *matrix.Expression {
	t.Helper()
	m, err := matrix.NewExpression(
		[]string{"g1", "g2"},
		[]string{"s1", "s2", "s3"},
		[][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	return m
}

func TestFileNormalizer(t *testing.T) {
	counts := countsFixture(t)

	t.Run("accepts a shape-matching table", func(t *testing.T) {
		path := writeFile(t, "norm.csv",
			"gene_id,s1,s2,s3\ng1,0.1,0.2,0.3\ng2,0.4,0.5,0.6\n")
		norm, err := (&FileNormalizer{Path: path}).Normalize(counts, nil)
		require.NoError(t, err)
		assert.Equal(t, counts.Samples, norm.Samples)
		assert.InDelta(t, 0.5, norm.Data[1][1], 1e-12)
	})

	t.Run("rejects a shape mismatch", func(t *testing.T) {
		path := writeFile(t, "norm.csv",
			"gene_id,s1,s2\ng1,0.1,0.2\ng2,0.4,0.5\n")
		_, err := (&FileNormalizer{Path: path}).Normalize(counts, nil)
		assert.ErrorContains(t, err, "contract violation")
	})

	t.Run("rejects reordered sample columns", func(t *testing.T) {
		path := writeFile(t, "norm.csv",
			"gene_id,s2,s1,s3\ng1,0.1,0.2,0.3\ng2,0.4,0.5,0.6\n")
		_, err := (&FileNormalizer{Path: path}).Normalize(counts, nil)
		assert.ErrorContains(t, err, "sample column")
	})
}

func TestFileCurveFitter(t *testing.T) {
	path := writeFile(t, "curve.csv",
		"power,network_type,fit_r2,mean_connectivity\n"+
			"4,signed_hybrid,0.77,55.1\n"+
			"5,signed_hybrid,0.83,41.2\n")
	curve, err := (&FileCurveFitter{Path: path}).FitCurve(nil, nil, softpower.SignedHybrid)
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.Equal(t, 5, curve[1].Power)
	assert.InDelta(t, 0.83, curve[1].FitR2, 1e-12)
}

func TestFileBuilder(t *testing.T) {
	counts := countsFixture(t)

	goodAssignments := "gene_id,module\ng1,1\ng2,0\n"
	goodEigengenes := "sample_id,ME1\ns1,-0.5\ns2,0.0\ns3,0.5\n"

	t.Run("reads assignments and eigengenes", func(t *testing.T) {
		b := &FileBuilder{
			AssignmentsPath: writeFile(t, "asg.csv", goodAssignments),
			EigengenesPath:  writeFile(t, "eg.csv", goodEigengenes),
		}
		asg, eg, err := b.BuildNetwork(counts, Params{})
		require.NoError(t, err)
		assert.Equal(t, 1, asg.Labels["g1"])
		assert.Equal(t, []int{0, 1}, asg.Modules())
		assert.Equal(t, []string{"g1"}, asg.Members(1))

		col, ok := eg.Column(1)
		require.True(t, ok)
		assert.Equal(t, []float64{-0.5, 0.0, 0.5}, col)
	})

	t.Run("every expression gene must be assigned", func(t *testing.T) {
		b := &FileBuilder{
			AssignmentsPath: writeFile(t, "asg.csv", "gene_id,module\ng1,1\n"),
			EigengenesPath:  writeFile(t, "eg.csv", goodEigengenes),
		}
		_, _, err := b.BuildNetwork(counts, Params{})
		assert.ErrorContains(t, err, "g2")
	})

	t.Run("negative module label rejected", func(t *testing.T) {
		b := &FileBuilder{
			AssignmentsPath: writeFile(t, "asg.csv", "gene_id,module\ng1,-1\ng2,0\n"),
			EigengenesPath:  writeFile(t, "eg.csv", goodEigengenes),
		}
		_, _, err := b.BuildNetwork(counts, Params{})
		assert.ErrorContains(t, err, "non-negative")
	})

	t.Run("eigengene header must be ME labels", func(t *testing.T) {
		b := &FileBuilder{
			AssignmentsPath: writeFile(t, "asg.csv", goodAssignments),
			EigengenesPath:  writeFile(t, "eg.csv", "sample_id,blue\ns1,0\ns2,0\ns3,0\n"),
		}
		_, _, err := b.BuildNetwork(counts, Params{})
		assert.ErrorContains(t, err, "ME<label>")
	})

	t.Run("eigengene rows must follow the working sample order", func(t *testing.T) {
		b := &FileBuilder{
			AssignmentsPath: writeFile(t, "asg.csv", goodAssignments),
			EigengenesPath:  writeFile(t, "eg.csv", "sample_id,ME1\ns2,0\ns1,0\ns3,0\n"),
		}
		_, _, err := b.BuildNetwork(counts, Params{})
		assert.ErrorContains(t, err, "working order")
	})
}

func TestAssignmentHelpers(t *testing.T) {
	asg := &Assignment{
		Genes:  []string{"a", "b", "c", "d"},
		Labels: map[string]int{"a": 2, "b": 0, "c": 2, "d": 1},
	}
	assert.Equal(t, []int{0, 1, 2}, asg.Modules())
	assert.Equal(t, []string{"a", "c"}, asg.Members(2))
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 2}, asg.Sizes())
}
