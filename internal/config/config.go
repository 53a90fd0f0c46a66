// Package config loads engine configuration from TOML, with defaults
// tuned for a long-running narrated campaign.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LLMConfig selects the classifier provider and model. The relevance
// check wants a fast, cheap model; narration quality is not its job.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens"`
}

// RelevanceConfig bounds the relevance check. The turn must never block
// on the classifier, so the call is cut off after TimeoutSeconds and
// treated as "nothing relevant".
type RelevanceConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// DecayConfig sets the per-turn importance decay rates. A rate set to
// 0 in the file disables that decay; rates left out keep the defaults.
type DecayConfig struct {
	EntityRate      float64 `toml:"entity_rate"`
	FactRate        float64 `toml:"fact_rate"`
	ConsequenceRate float64 `toml:"consequence_rate"`
}

// MemgraphConfig points at an optional graph database for relationship
// exports. Unset URI disables exporting.
type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// PromptsConfig overrides the built-in prompt templates. Empty fields
// fall back to the defaults compiled into the relevance and extraction
// packages.
type PromptsConfig struct {
	Relevance  string `toml:"relevance"`
	Extraction string `toml:"extraction"`
}

// Config is the full engine configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Relevance RelevanceConfig `toml:"relevance"`
	Decay     DecayConfig     `toml:"decay"`
	Memgraph  MemgraphConfig  `toml:"memgraph"`
	Prompts   PromptsConfig   `toml:"prompts"`
}

// Default returns the configuration used when no file is present:
// a Haiku-class Claude model for classification and the standard decay
// rates (consequences at half the entity/fact rate).
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "claude",
			Model:     "claude-3-5-haiku-20241022",
			MaxTokens: 500,
		},
		Relevance: RelevanceConfig{TimeoutSeconds: 15},
		Decay: DecayConfig{
			EntityRate:      0.02,
			FactRate:        0.02,
			ConsequenceRate: 0.01,
		},
	}
}

// Load reads a TOML config file, filling unset fields from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.applyFallbacks()
	return cfg, nil
}

// FromEnv overlays environment variables onto the config. Only LLM
// credentials and endpoints come from the environment; policy stays in
// the file.
func (c *Config) FromEnv() *Config {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Memgraph.Password = v
	}
	return c
}

func (c *Config) applyFallbacks() {
	def := Default()
	if c.LLM.Provider == "" {
		c.LLM.Provider = def.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if c.Relevance.TimeoutSeconds == 0 {
		c.Relevance.TimeoutSeconds = def.Relevance.TimeoutSeconds
	}
	// Decay rates have no fallback here: unmarshal overlays the file
	// onto Default(), so unset rates already carry defaults and an
	// explicit 0 means "no decay".
}
