package config

import (
	"fmt"
	"os"
	"time"
)

// EmbeddingConfig defines the sentence-embedding backend used for classification.
type EmbeddingConfig struct {
	Name       string        `mapstructure:"name"`         // Identifier used in logs and the seed store
	Provider   string        `mapstructure:"provider"`     // Provider type: "tei", "jina", "openai-compatible"
	Model      string        `mapstructure:"model"`        // Model name/ID
	APIKey     string        `mapstructure:"api_key"`      // API key (can be set directly or via env var)
	APIKeyEnv  string        `mapstructure:"api_key_env"`  // Environment variable name for API key
	BaseURL    string        `mapstructure:"base_url"`     // Base URL of the inference server
	BaseURLEnv string        `mapstructure:"base_url_env"` // Environment variable name for base URL
	Dimensions int           `mapstructure:"dimensions"`   // Expected vector length; 0 accepts whatever the model returns
	Timeout    time.Duration `mapstructure:"timeout"`      // Per-request timeout
}

// ResolveEnvVars resolves environment variable references in the configuration.
// Direct values (APIKey, BaseURL) take precedence if already set.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}

	if c.BaseURLEnv != "" && c.BaseURL == "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
}

// Validate checks that the embedding configuration has all required fields.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding %q: provider is required", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding %q: model is required", c.Name)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("embedding %q: dimensions must not be negative", c.Name)
	}

	switch c.Provider {
	case "tei", "openai-compatible":
		if c.BaseURL == "" {
			return fmt.Errorf("embedding %q: base_url is required for provider %q", c.Name, c.Provider)
		}
	case "jina":
		if c.APIKey == "" {
			return fmt.Errorf("embedding %q: api_key is required (set directly or via %s)", c.Name, c.APIKeyEnv)
		}
	default:
		return fmt.Errorf("embedding %q: unknown provider %q", c.Name, c.Provider)
	}

	return nil
}

// ModelVersion identifies the model for cache keys.
func (c *EmbeddingConfig) ModelVersion() string {
	return c.Provider + ":" + c.Model
}
