package traits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubseek/internal/matrix"
)

func stageMetadata(t *testing.T) *matrix.Metadata {
	t.Helper()
	md, err := matrix.NewMetadata(
		[]string{"s1", "s2", "s3", "s4"},
		[]string{"development_stage", "genotype"},
		map[string]map[string]string{
			"s1": {"development_stage": "2leaf", "genotype": "WT"},
			"s2": {"development_stage": "2leaf", "genotype": "MUT"},
			"s3": {"development_stage": "4leaf", "genotype": "WT"},
			"s4": {"development_stage": "4leaf", "genotype": "MUT"},
		})
	require.NoError(t, err)
	return md
}

func TestBuild(t *testing.T) {
	t.Run("reference level is omitted by construction", func(t *testing.T) {
		d, err := Build(stageMetadata(t), []Factor{
			{Name: "development_stage", Levels: []string{"2leaf", "4leaf"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"development_stage4leaf"}, d.Columns)
		_, ok := d.Column("development_stage2leaf")
		assert.False(t, ok, "reference level must not appear as a column")

		col, ok := d.Column("development_stage4leaf")
		require.True(t, ok)
		assert.Equal(t, []float64{0, 0, 1, 1}, col)
	})

	t.Run("row order follows the working sample order", func(t *testing.T) {
		d, err := Build(stageMetadata(t), []Factor{
			{Name: "genotype", Levels: []string{"WT", "MUT"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, d.Samples)
		col, ok := d.Column("genotypeMUT")
		require.True(t, ok)
		assert.Equal(t, []float64{0, 1, 0, 1}, col)
	})

	t.Run("multiple factors concatenate columns", func(t *testing.T) {
		d, err := Build(stageMetadata(t), []Factor{
			{Name: "development_stage", Levels: []string{"2leaf", "4leaf"}},
			{Name: "genotype", Levels: []string{"WT", "MUT"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"development_stage4leaf", "genotypeMUT"}, d.Columns)
	})

	t.Run("empty levels derive from first appearance", func(t *testing.T) {
		d, err := Build(stageMetadata(t), []Factor{{Name: "genotype"}})
		require.NoError(t, err)
		// WT appears first, so it is the reference.
		assert.Equal(t, []string{"genotypeMUT"}, d.Columns)
	})

	t.Run("values outside declared levels are enumerated", func(t *testing.T) {
		_, err := Build(stageMetadata(t), []Factor{
			{Name: "development_stage", Levels: []string{"2leaf", "6leaf"}},
		})
		var ie *matrix.InputError
		require.ErrorAs(t, err, &ie)
		assert.Contains(t, ie.Identifiers, "s3[development_stage]=4leaf")
		assert.Contains(t, ie.Identifiers, "s4[development_stage]=4leaf")
	})

	t.Run("unknown factor column", func(t *testing.T) {
		_, err := Build(stageMetadata(t), []Factor{{Name: "tissue"}})
		var ie *matrix.InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, []string{"tissue"}, ie.Identifiers)
	})

	t.Run("single-level factor is rejected", func(t *testing.T) {
		_, err := Build(stageMetadata(t), []Factor{
			{Name: "genotype", Levels: []string{"WT"}},
		})
		assert.Error(t, err)
	})

	t.Run("no factors is rejected", func(t *testing.T) {
		_, err := Build(stageMetadata(t), nil)
		assert.Error(t, err)
	})
}

func TestSanitizeColumn(t *testing.T) {
	assert.Equal(t, "development_stage4leaf", SanitizeColumn("development_stage4leaf"))
	assert.Equal(t, "geno_type_a_b", SanitizeColumn("geno-type a.b"))
}
