// Package config carries every approved gate decision of a pipeline run as
// one explicit, validated configuration object. Nothing in here is
// re-derived at run time: the outlier removal list, the approved network
// power and type, module-detection parameters, significance thresholds and
// the hub policy are all frozen inputs.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"hubseek/internal/traits"
)

// Config is the full configuration surface consumed by the orchestrator.
type Config struct {
	// Inputs
	ExpressionFile string `yaml:"expression_file"`
	MetadataFile   string `yaml:"metadata_file"`

	// Collaborator-produced tables (external black boxes)
	Collaborator CollaboratorConfig `yaml:"collaborator"`

	// Outputs
	OutputRoot   string `yaml:"output_root"`
	RegistryPath string `yaml:"registry_path"` // sqlite run registry, empty disables

	// Throughput only; never affects results
	Workers int `yaml:"workers"`

	QC           QCConfig           `yaml:"qc"`
	Network      NetworkConfig      `yaml:"network"`
	Traits       TraitsConfig       `yaml:"traits"`
	Significance SignificanceConfig `yaml:"significance"`
	Hub          HubConfig          `yaml:"hub"`
}

// CollaboratorConfig points at the tables the external collaborators wrote.
type CollaboratorConfig struct {
	NormalizedFile  string `yaml:"normalized_file"`
	FitCurveFile    string `yaml:"fit_curve_file"`
	AssignmentsFile string `yaml:"assignments_file"`
	EigengenesFile  string `yaml:"eigengenes_file"`
}

// QCConfig holds the QC thresholds and the approved outlier removal list.
// RemoveSamples is the approved decision; the automatic flags never remove
// anything on their own.
type QCConfig struct {
	MinCount          float64  `yaml:"min_count"`
	MinSampleFraction float64  `yaml:"min_sample_fraction"`
	OutlierZThreshold float64  `yaml:"outlier_z_threshold"`
	RemoveSamples     []string `yaml:"remove_samples"`
}

// NetworkConfig holds the approved power/network-type plus the
// module-detection parameters handed to the network collaborator. Power and
// NetworkType are the approved values; the engine's recommendation is a
// separate output and may differ.
type NetworkConfig struct {
	Power          int     `yaml:"power"`
	NetworkType    string  `yaml:"network_type"`
	TOMType        string  `yaml:"tom_type"`
	MinModuleSize  int     `yaml:"min_module_size"`
	DeepSplit      int     `yaml:"deep_split"`
	MergeCutHeight float64 `yaml:"merge_cut_height"`
	FitTarget      float64 `yaml:"fit_target"`
}

// TraitsConfig names the categorical columns to encode and their level
// orderings. The first level of each factor is the omitted reference.
type TraitsConfig struct {
	Factors []traits.Factor `yaml:"factors"`
}

// SignificanceConfig is the module-trait significance policy.
type SignificanceConfig struct {
	FDRCutoff         float64  `yaml:"fdr_cutoff"`
	MinAbsCorrelation float64  `yaml:"min_abs_correlation"`
	AllowedTraits     []string `yaml:"allowed_traits"`
}

// HubConfig names the approved threshold policy and the capped view size.
type HubConfig struct {
	Policy string `yaml:"policy"` // strict or balanced
	TopN   int    `yaml:"top_n"`
}

// DefaultConfig returns the defaults the gates start from.
func DefaultConfig() *Config {
	return &Config{
		OutputRoot:   "out",
		RegistryPath: "out/hubseek_runs.db",
		Workers:      1,
		QC: QCConfig{
			MinCount:          10,
			MinSampleFraction: 0.20,
			OutlierZThreshold: -2.5,
		},
		Network: NetworkConfig{
			NetworkType:    "signed_hybrid",
			TOMType:        "signed",
			MinModuleSize:  30,
			DeepSplit:      2,
			MergeCutHeight: 0.25,
			FitTarget:      0.80,
		},
		Significance: SignificanceConfig{
			FDRCutoff:         0.05,
			MinAbsCorrelation: 0.5,
		},
		Hub: HubConfig{
			Policy: "strict",
			TopN:   50,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets the environment override file paths, handy in CI
// where the same config serves multiple data drops.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HUBSEEK_EXPRESSION_FILE"); v != "" {
		c.ExpressionFile = v
	}
	if v := os.Getenv("HUBSEEK_METADATA_FILE"); v != "" {
		c.MetadataFile = v
	}
	if v := os.Getenv("HUBSEEK_OUTPUT_ROOT"); v != "" {
		c.OutputRoot = v
	}
	if v := os.Getenv("HUBSEEK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
}

// Validate checks the frozen decision set before a run starts.
func (c *Config) Validate() error {
	if c.ExpressionFile == "" {
		return fmt.Errorf("expression_file is required")
	}
	if c.MetadataFile == "" {
		return fmt.Errorf("metadata_file is required")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("output_root is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.QC.MinCount < 0 {
		return fmt.Errorf("qc.min_count must be >= 0, got %g", c.QC.MinCount)
	}
	if c.QC.MinSampleFraction <= 0 || c.QC.MinSampleFraction > 1 {
		return fmt.Errorf("qc.min_sample_fraction must be in (0, 1], got %g", c.QC.MinSampleFraction)
	}
	if c.QC.OutlierZThreshold >= 0 {
		return fmt.Errorf("qc.outlier_z_threshold must be negative, got %g", c.QC.OutlierZThreshold)
	}
	if c.Network.Power < 1 {
		return fmt.Errorf("network.power is the approved soft-threshold power and must be >= 1, got %d", c.Network.Power)
	}
	switch c.Network.NetworkType {
	case "signed", "signed_hybrid":
	default:
		return fmt.Errorf("network.network_type must be signed or signed_hybrid, got %q", c.Network.NetworkType)
	}
	if c.Network.MinModuleSize < 1 {
		return fmt.Errorf("network.min_module_size must be >= 1, got %d", c.Network.MinModuleSize)
	}
	if c.Network.MergeCutHeight <= 0 || c.Network.MergeCutHeight >= 1 {
		return fmt.Errorf("network.merge_cut_height must be in (0, 1), got %g", c.Network.MergeCutHeight)
	}
	if len(c.Traits.Factors) == 0 {
		return fmt.Errorf("traits.factors must name at least one categorical column")
	}
	if c.Significance.FDRCutoff <= 0 || c.Significance.FDRCutoff >= 1 {
		return fmt.Errorf("significance.fdr_cutoff must be in (0, 1), got %g", c.Significance.FDRCutoff)
	}
	if c.Significance.MinAbsCorrelation < 0 || c.Significance.MinAbsCorrelation > 1 {
		return fmt.Errorf("significance.min_abs_correlation must be in [0, 1], got %g", c.Significance.MinAbsCorrelation)
	}
	switch c.Hub.Policy {
	case "strict", "balanced":
	default:
		return fmt.Errorf("hub.policy must be strict or balanced, got %q", c.Hub.Policy)
	}
	if c.Hub.TopN < 1 {
		return fmt.Errorf("hub.top_n must be >= 1, got %d", c.Hub.TopN)
	}
	return nil
}

// Digest fingerprints the configuration for the run registry.
func (c *Config) Digest() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
