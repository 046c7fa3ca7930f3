// Package config loads annotation run configuration from YAML, with
// environment overrides for the deployment-dependent settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DataConfig locates the input files and names the metadata columns.
type DataConfig struct {
	FeaturesCSV    string `yaml:"features_csv"`
	ObsCSV         string `yaml:"obs_csv"`
	BatchColumn    string `yaml:"batch_column"`
	LabelsColumn   string `yaml:"labels_column"`
	UnlabeledToken string `yaml:"unlabeled_token"`
}

// AlgorithmConfig configures one algorithm entry of a run.
type AlgorithmConfig struct {
	Name         string         `yaml:"name"`
	ResultKey    string         `yaml:"result_key,omitempty"`
	EmbeddingKey string         `yaml:"embedding_key,omitempty"`
	Method       map[string]any `yaml:"method,omitempty"`
	Classifier   map[string]any `yaml:"classifier,omitempty"`
	Embedding    map[string]any `yaml:"embedding,omitempty"`
}

// Config is the full annotation run configuration.
type Config struct {
	LogLevel            string            `yaml:"log_level"`
	LogFormat           string            `yaml:"log_format"`
	Backend             string            `yaml:"backend"`
	ReturnProbabilities bool              `yaml:"return_probabilities"`
	ComputeEmbedding    bool              `yaml:"compute_embedding"`
	ResultsDB           string            `yaml:"results_db"`
	Data                DataConfig        `yaml:"data"`
	Algorithms          []AlgorithmConfig `yaml:"algorithms"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills the optional settings.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Backend == "" {
		c.Backend = "exact"
	}
	if c.Data.UnlabeledToken == "" {
		c.Data.UnlabeledToken = "unknown"
	}
	if len(c.Algorithms) == 0 {
		c.Algorithms = []AlgorithmConfig{
			{Name: "harmony"},
			{Name: "scanorama"},
			{Name: "knn_on_pca"},
		}
	}
}

// applyEnv lets the environment override deployment-dependent settings.
func (c *Config) applyEnv() {
	if v := os.Getenv("POPVOTE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("POPVOTE_RESULTS_DB"); v != "" {
		c.ResultsDB = v
	}
}

// Validate checks the configuration for the errors a run would hit later.
func (c *Config) Validate() error {
	if c.Data.FeaturesCSV == "" {
		return fmt.Errorf("data.features_csv is required")
	}
	if c.Data.ObsCSV == "" {
		return fmt.Errorf("data.obs_csv is required")
	}
	if c.Data.BatchColumn == "" {
		return fmt.Errorf("data.batch_column is required")
	}
	if c.Data.LabelsColumn == "" {
		return fmt.Errorf("data.labels_column is required")
	}
	switch c.Backend {
	case "exact", "kdtree":
	default:
		return fmt.Errorf("unknown backend %q (want exact or kdtree)", c.Backend)
	}
	for i, alg := range c.Algorithms {
		if alg.Name == "" {
			return fmt.Errorf("algorithms[%d].name is required", i)
		}
	}
	return nil
}
