// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultHost is the OpenAI API endpoint.
	DefaultHost = "https://api.openai.com/v1"

	// DefaultEmbeddingModel produces DefaultEmbeddingDimensions-wide vectors.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimensions is the vector width of DefaultEmbeddingModel.
	DefaultEmbeddingDimensions = 1536

	// DefaultSynthesisModel is used to merge binder conversations.
	DefaultSynthesisModel = "gpt-4-turbo"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// SynthesisHost is the base URL for the chat completion service used to merge binders.
	SynthesisHost string

	// APIToken authenticates against both services.
	// Local OpenAI-compatible servers usually accept any value.
	APIToken string

	// EmbeddingModel is the model identifier to use for text embeddings.
	EmbeddingModel string

	// EmbeddingDimensions is the expected vector width. Vectors of any other
	// width are rejected. Zero disables the check.
	EmbeddingDimensions int

	// SynthesisModel is the model identifier used for merge synthesis.
	SynthesisModel string

	// Temperature is the sampling temperature for synthesis.
	// Default: 0.3
	Temperature float64

	// MaxTokens caps the length of a synthesized document.
	// Default: 3000
	MaxTokens int

	// EmbeddingTimeout bounds a single embedding call.
	// Default: 20s
	EmbeddingTimeout time.Duration

	// SynthesisTimeout bounds a single synthesis call.
	// Default: 30s
	SynthesisTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithSynthesisHost sets the synthesis service host URL.
func WithSynthesisHost(host string) ConfigOption {
	return func(c *Config) {
		c.SynthesisHost = host
	}
}

// WithHost sets both embedding and synthesis hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.SynthesisHost = host
	}
}

// WithAPIToken sets the token sent to both services.
func WithAPIToken(token string) ConfigOption {
	return func(c *Config) {
		c.APIToken = token
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingDimensions sets the expected embedding width.
func WithEmbeddingDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimensions = dims
	}
}

// WithSynthesisModel sets the synthesis model identifier.
func WithSynthesisModel(model string) ConfigOption {
	return func(c *Config) {
		c.SynthesisModel = model
	}
}

// WithTemperature sets the synthesis sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the synthesis output cap.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithEmbeddingTimeout sets the per-call embedding timeout.
func WithEmbeddingTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.EmbeddingTimeout = d
	}
}

// WithSynthesisTimeout sets the per-call synthesis timeout.
func WithSynthesisTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.SynthesisTimeout = d
	}
}

// DefaultConfig returns a Config targeting the OpenAI API with the stock models.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:       DefaultHost,
		SynthesisHost:       DefaultHost,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		SynthesisModel:      DefaultSynthesisModel,
		Temperature:         0.3,
		MaxTokens:           3000,
		EmbeddingTimeout:    20 * time.Second,
		SynthesisTimeout:    30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithEmbeddingDimensions(768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Token returns the API token, or a placeholder for servers that don't authenticate.
func (c *Config) Token() string {
	if c.APIToken == "" {
		return "none"
	}
	return c.APIToken
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.SynthesisHost = normalizeHost(c.SynthesisHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.SynthesisHost == "" {
		return errors.New("ai config: SynthesisHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.SynthesisModel == "" {
		return errors.New("ai config: SynthesisModel is required")
	}
	if c.EmbeddingDimensions < 0 {
		return errors.New("ai config: EmbeddingDimensions cannot be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 {
		return errors.New("ai config: MaxTokens must be positive")
	}
	if c.EmbeddingTimeout <= 0 || c.SynthesisTimeout <= 0 {
		return errors.New("ai config: timeouts must be positive")
	}
	return nil
}
