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

package openai

import (
	"log/slog"

	"github.com/poiesic/chatbinder/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible APIs.
// It aggregates the embedder and synthesizer services.
type Provider struct {
	config      *ai.Config
	embedder    *Embedder
	synthesizer *Synthesizer
	logger      *slog.Logger
}

// NewProvider creates a new OpenAI provider with the given configuration.
// It initializes both the embedder and synthesizer services.
//
// Returns ai.AIProvider interface to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	synthesizer, err := newSynthesizer(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:      config,
		embedder:    embedder,
		synthesizer: synthesizer,
		logger:      slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Synthesizer returns the synthesis service.
func (p *Provider) Synthesizer() ai.Synthesizer {
	return p.synthesizer
}

// Close releases resources held by the provider.
// The langchaingo HTTP clients hold no resources that need explicit release.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
