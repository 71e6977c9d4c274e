package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubseek/internal/traits"
)

// validConfig fills in the fields DefaultConfig leaves for the operator.
func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.ExpressionFile = "counts.csv"
	cfg.MetadataFile = "meta.csv"
	cfg.Network.Power = 5
	cfg.Traits.Factors = []traits.Factor{{Name: "genotype", Levels: []string{"WT", "MUT"}}}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10.0, cfg.QC.MinCount)
	assert.Equal(t, 0.20, cfg.QC.MinSampleFraction)
	assert.Equal(t, -2.5, cfg.QC.OutlierZThreshold)
	assert.Equal(t, "signed_hybrid", cfg.Network.NetworkType)
	assert.Equal(t, 0.80, cfg.Network.FitTarget)
	assert.Equal(t, 0.05, cfg.Significance.FDRCutoff)
	assert.Equal(t, "strict", cfg.Hub.Policy)
	assert.Equal(t, 50, cfg.Hub.TopN)
	assert.Equal(t, 1, cfg.Workers)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubseek.yaml")
	cfg := validConfig()
	cfg.QC.RemoveSamples = []string{"S12"}
	cfg.Significance.AllowedTraits = []string{"genotypeMUT"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ExpressionFile, loaded.ExpressionFile)
	assert.Equal(t, []string{"S12"}, loaded.QC.RemoveSamples)
	assert.Equal(t, []string{"genotypeMUT"}, loaded.Significance.AllowedTraits)
	assert.Equal(t, cfg.Traits.Factors, loaded.Traits.Factors)
	assert.Equal(t, 5, loaded.Network.Power)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().OutputRoot, cfg.OutputRoot)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 4\nhub:\n  policy: balanced\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "balanced", cfg.Hub.Policy)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10.0, cfg.QC.MinCount)
	assert.Equal(t, 50, cfg.Hub.TopN)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HUBSEEK_EXPRESSION_FILE", "/data/counts.csv.gz")
	t.Setenv("HUBSEEK_WORKERS", "8")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/data/counts.csv.gz", cfg.ExpressionFile)
	assert.Equal(t, 8, cfg.Workers)
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing expression", func(c *Config) { c.ExpressionFile = "" }, "expression_file"},
		{"missing metadata", func(c *Config) { c.MetadataFile = "" }, "metadata_file"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"fraction above one", func(c *Config) { c.QC.MinSampleFraction = 1.5 }, "min_sample_fraction"},
		{"positive z threshold", func(c *Config) { c.QC.OutlierZThreshold = 2.5 }, "outlier_z_threshold"},
		{"power unset", func(c *Config) { c.Network.Power = 0 }, "power"},
		{"unsigned network", func(c *Config) { c.Network.NetworkType = "unsigned" }, "network_type"},
		{"merge cut out of range", func(c *Config) { c.Network.MergeCutHeight = 1.0 }, "merge_cut_height"},
		{"no factors", func(c *Config) { c.Traits.Factors = nil }, "traits.factors"},
		{"fdr cutoff at one", func(c *Config) { c.Significance.FDRCutoff = 1.0 }, "fdr_cutoff"},
		{"unknown policy", func(c *Config) { c.Hub.Policy = "lenient" }, "policy"},
		{"zero top n", func(c *Config) { c.Hub.TopN = 0 }, "top_n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestDigest(t *testing.T) {
	a, b := validConfig(), validConfig()
	assert.Equal(t, a.Digest(), b.Digest(), "identical configs share a digest")

	b.Network.Power = 6
	assert.NotEqual(t, a.Digest(), b.Digest(), "any approved change moves the digest")
	assert.Len(t, a.Digest(), 64)
}
