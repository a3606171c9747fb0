package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Model providers. An empty generation provider answers extractively from
// the evidence; the hashing embedder needs no remote service.
const (
	ProviderNone    = ""
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

const (
	EnvGenerationProvider       = "COVENANT_GENERATION_PROVIDER"
	EnvGenerationBaseURL        = "COVENANT_GENERATION_BASE_URL"
	EnvGenerationModel          = "COVENANT_GENERATION_MODEL"
	EnvGenerationAPIKey         = "COVENANT_GENERATION_API_KEY"
	EnvGenerationAzure          = "COVENANT_GENERATION_AZURE"
	EnvGenerationAPIVersion     = "COVENANT_GENERATION_API_VERSION"
	EnvGenerationTimeout        = "COVENANT_GENERATION_TIMEOUT"
	EnvGenerationAnswerPrompt   = "COVENANT_GENERATION_ANSWER_INSTRUCTIONS"
	EnvGenerationClassifyPrompt = "COVENANT_GENERATION_CLASSIFY_INSTRUCTIONS"

	EnvEmbeddingProvider   = "COVENANT_EMBEDDING_PROVIDER"
	EnvEmbeddingBaseURL    = "COVENANT_EMBEDDING_BASE_URL"
	EnvEmbeddingModel      = "COVENANT_EMBEDDING_MODEL"
	EnvEmbeddingDimensions = "COVENANT_EMBEDDING_DIMENSIONS"
	EnvEmbeddingTimeout    = "COVENANT_EMBEDDING_TIMEOUT"
)

// GenerationConfig selects the chat model used for answers and, when the
// pipeline classifier is "model", clause classification.
type GenerationConfig struct {
	Provider             string `toml:"provider"`
	BaseURL              string `toml:"base_url"`
	Model                string `toml:"model"`
	APIKey               string `toml:"api_key"`
	Azure                bool   `toml:"azure"`
	APIVersion           string `toml:"api_version"`
	Timeout              string `toml:"timeout"`
	AnswerInstructions   string `toml:"answer_instructions"`
	ClassifyInstructions string `toml:"classify_instructions"`
}

// Enabled reports whether a chat model is configured.
func (c *GenerationConfig) Enabled() bool {
	return c.Provider != ProviderNone
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *GenerationConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *GenerationConfig) Finalize() error {
	c.loadEnv()
	c.loadDefaults()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *GenerationConfig) Merge(overlay *GenerationConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Azure {
		c.Azure = true
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.AnswerInstructions != "" {
		c.AnswerInstructions = overlay.AnswerInstructions
	}
	if overlay.ClassifyInstructions != "" {
		c.ClassifyInstructions = overlay.ClassifyInstructions
	}
}

// loadDefaults runs after loadEnv so provider-specific defaults follow an
// environment-selected provider.
func (c *GenerationConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
	switch c.Provider {
	case ProviderOllama:
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Model == "" {
			c.Model = "llama3.2"
		}
	case ProviderOpenAI:
		if c.Model == "" {
			c.Model = "gpt-4o-mini"
		}
	}
}

func (c *GenerationConfig) loadEnv() {
	if v := os.Getenv(EnvGenerationProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvGenerationBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvGenerationModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvGenerationAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvGenerationAzure); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Azure = b
		}
	}
	if v := os.Getenv(EnvGenerationAPIVersion); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv(EnvGenerationTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvGenerationAnswerPrompt); v != "" {
		c.AnswerInstructions = v
	}
	if v := os.Getenv(EnvGenerationClassifyPrompt); v != "" {
		c.ClassifyInstructions = v
	}
}

func (c *GenerationConfig) validate() error {
	switch c.Provider {
	case ProviderNone, ProviderOllama:
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key required for openai provider")
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

// EmbeddingConfig selects the embedder for the vector search path. An
// empty provider leaves search lexical only.
type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	Timeout    string `toml:"timeout"`
}

// Enabled reports whether an embedder is configured.
func (c *EmbeddingConfig) Enabled() bool {
	return c.Provider != ProviderNone
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *EmbeddingConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EmbeddingConfig) Finalize() error {
	c.loadEnv()
	c.loadDefaults()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EmbeddingConfig) Merge(overlay *EmbeddingConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Dimensions != 0 {
		c.Dimensions = overlay.Dimensions
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *EmbeddingConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 256
	}
	if c.Provider == ProviderOllama {
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
	}
}

func (c *EmbeddingConfig) loadEnv() {
	if v := os.Getenv(EnvEmbeddingProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvEmbeddingBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvEmbeddingDimensions); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dimensions = n
		}
	}
	if v := os.Getenv(EnvEmbeddingTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *EmbeddingConfig) validate() error {
	switch c.Provider {
	case ProviderNone, ProviderOllama, ProviderHashing:
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.Dimensions < 1 {
		return fmt.Errorf("invalid dimensions: %d", c.Dimensions)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
