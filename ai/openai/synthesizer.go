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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var errBlankCompletion = errors.New("model returned a blank completion")

// Synthesizer implements ai.Synthesizer using an OpenAI-compatible chat completion API.
type Synthesizer struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// newSynthesizer creates a new synthesizer, returning the concrete type.
// Used internally by Provider.
func newSynthesizer(config *ai.Config) (*Synthesizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.SynthesisHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.SynthesisModel),
	)
	if err != nil {
		return nil, err
	}

	return newSynthesizerWithModel(client, config), nil
}

func newSynthesizerWithModel(client llms.Model, config *ai.Config) *Synthesizer {
	return &Synthesizer{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      slog.Default().With("component", "openai-synthesizer"),
	}
}

// NewSynthesizer creates a new synthesizer with the given configuration.
// Returns ai.Synthesizer interface to enforce abstraction.
func NewSynthesizer(config *ai.Config) (ai.Synthesizer, error) {
	return newSynthesizer(config)
}

// Synthesize sends the prompts as a system/user message pair and returns the
// first completion with any wrapping code fence removed.
func (s *Synthesizer) Synthesize(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(userPrompt),
			},
		},
	}

	s.logger.Debug("requesting synthesis", "prompt_length", len(userPrompt))

	response, err := s.client.GenerateContent(ctx, content,
		llms.WithTemperature(s.temperature),
		llms.WithMaxTokens(s.maxTokens))
	if err != nil {
		s.logger.Error("failed to generate content", "err", err)
		return "", fmt.Errorf("%w: %w", core.ErrSynthesisUnavailable, err)
	}

	if len(response.Choices) < 1 {
		s.logger.Warn("no choices returned from model")
		return "", fmt.Errorf("%w: %w", core.ErrSynthesisUnavailable, errBlankCompletion)
	}

	text := stripCodeFence(response.Choices[0].Content)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %w", core.ErrSynthesisUnavailable, errBlankCompletion)
	}

	s.logger.Debug("synthesis complete", "length", len(text))
	return text, nil
}
