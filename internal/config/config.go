// Package config provides configuration loading and validation for the CLI
// and the HTTP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Multitrix/cv-to-job-description/internal/pipeline"
	"github.com/Multitrix/cv-to-job-description/internal/rank"
	"github.com/Multitrix/cv-to-job-description/internal/rewrite"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided
// via CLI flags or environment variables.
type Config struct {
	// Paths
	Profile string `json:"profile,omitempty"` // Path to profile JSON file
	Job     string `json:"job,omitempty"`     // Path to job posting text file
	JobURL  string `json:"job_url,omitempty"` // URL to fetch job posting from
	Output  string `json:"output,omitempty"`  // Path to write the tailored profile to

	// Identity
	UserID string `json:"user_id,omitempty"` // Namespace the profile snippets live under

	// Backends
	APIKey        string `json:"api_key,omitempty"`        // Gemini API key
	DatabaseURL   string `json:"database_url,omitempty"`   // PostgreSQL connection URL
	QdrantURL     string `json:"qdrant_url,omitempty"`     // Qdrant base URL; empty selects the in-memory store
	StorePrefix   string `json:"store_prefix,omitempty"`   // Collection name prefix for the vector store
	GenerateModel string `json:"generate_model,omitempty"` // Generation model name
	ListenAddr    string `json:"listen_addr,omitempty"`    // HTTP server bind address

	// Tuning
	TopKRetrieval      int     `json:"top_k_retrieval,omitempty"`
	RerankTopN         int     `json:"rerank_top_n,omitempty"`
	MaxBullets         int     `json:"max_bullets,omitempty"`
	RewriteConcurrency int     `json:"rewrite_concurrency,omitempty"`
	FidelityThreshold  float64 `json:"fidelity_threshold,omitempty"`
	LightSim           float64 `json:"light_sim,omitempty"`
	LightKeyword       float64 `json:"light_keyword,omitempty"`
	MediumSim          float64 `json:"medium_sim,omitempty"`
	MediumKeyword      float64 `json:"medium_keyword,omitempty"`

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv fills backend credentials from the environment for any field the
// config file left empty. CLI flags are merged separately and always win.
func (c *Config) FromEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.QdrantURL == "" {
		c.QdrantURL = os.Getenv("QDRANT_URL")
	}
}

// Validate checks that the configuration has valid values.
// Required fields are not checked here; flag validation after merging handles
// those.
func (c *Config) Validate() error {
	if c.Job != "" && c.JobURL != "" {
		return fmt.Errorf("config error: 'job' and 'job_url' are mutually exclusive")
	}

	if c.TopKRetrieval < 0 {
		return fmt.Errorf("config error: 'top_k_retrieval' must be non-negative")
	}
	if c.RerankTopN < 0 {
		return fmt.Errorf("config error: 'rerank_top_n' must be non-negative")
	}
	if c.MaxBullets < 0 {
		return fmt.Errorf("config error: 'max_bullets' must be non-negative")
	}
	if c.FidelityThreshold < 0 || c.FidelityThreshold > 1 {
		return fmt.Errorf("config error: 'fidelity_threshold' must be within [0, 1]")
	}
	for name, v := range map[string]float64{
		"light_sim":      c.LightSim,
		"light_keyword":  c.LightKeyword,
		"medium_sim":     c.MediumSim,
		"medium_keyword": c.MediumKeyword,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config error: '%s' must be within [0, 1]", name)
		}
	}

	if c.Profile != "" {
		if _, err := os.Stat(c.Profile); os.IsNotExist(err) {
			return fmt.Errorf("config error: profile file not found: %s", c.Profile)
		}
	}
	if c.Job != "" {
		if _, err := os.Stat(c.Job); os.IsNotExist(err) {
			return fmt.Errorf("config error: job file not found: %s", c.Job)
		}
	}

	return nil
}

// PipelineOptions converts the tuning fields into pipeline options, falling
// back to the standard defaults for anything unset.
func (c *Config) PipelineOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Weights = rank.DefaultWeights()

	if c.TopKRetrieval > 0 {
		opts.TopKRetrieval = c.TopKRetrieval
	}
	if c.RerankTopN > 0 {
		opts.RerankTopN = c.RerankTopN
	}
	if c.MaxBullets > 0 {
		opts.MaxBulletsPerExperience = c.MaxBullets
	}
	if c.RewriteConcurrency > 0 {
		opts.RewriteConcurrency = c.RewriteConcurrency
	}
	if c.LightSim > 0 {
		opts.LightSim = c.LightSim
	}
	if c.LightKeyword > 0 {
		opts.LightKeyword = c.LightKeyword
	}
	if c.MediumSim > 0 {
		opts.MediumSim = c.MediumSim
	}
	if c.MediumKeyword > 0 {
		opts.MediumKeyword = c.MediumKeyword
	}
	return opts
}

// RewriteConfig converts the fidelity threshold into a rewriter config,
// falling back to the standard default when unset.
func (c *Config) RewriteConfig() rewrite.Config {
	cfg := rewrite.DefaultConfig()
	if c.FidelityThreshold > 0 {
		cfg.FidelityThreshold = c.FidelityThreshold
	}
	return cfg
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Profile == "" {
		result.Profile = defaults.Profile
	}
	if result.Job == "" {
		result.Job = defaults.Job
	}
	if result.JobURL == "" {
		result.JobURL = defaults.JobURL
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.UserID == "" {
		result.UserID = defaults.UserID
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.QdrantURL == "" {
		result.QdrantURL = defaults.QdrantURL
	}
	if result.StorePrefix == "" {
		result.StorePrefix = defaults.StorePrefix
	}
	if result.GenerateModel == "" {
		result.GenerateModel = defaults.GenerateModel
	}
	if result.ListenAddr == "" {
		result.ListenAddr = defaults.ListenAddr
	}

	if result.TopKRetrieval == 0 {
		result.TopKRetrieval = defaults.TopKRetrieval
	}
	if result.RerankTopN == 0 {
		result.RerankTopN = defaults.RerankTopN
	}
	if result.MaxBullets == 0 {
		result.MaxBullets = defaults.MaxBullets
	}
	if result.RewriteConcurrency == 0 {
		result.RewriteConcurrency = defaults.RewriteConcurrency
	}
	if result.FidelityThreshold == 0 {
		result.FidelityThreshold = defaults.FidelityThreshold
	}

	// Bool fields cannot distinguish unset from false, so they are not
	// merged; CLI flags always win for bools.

	return result
}
