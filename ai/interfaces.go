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

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Synthesizer turns a prompt pair into generated text.
// Implementations must be thread-safe for concurrent use.
type Synthesizer interface {
	// Synthesize sends the system and user prompts to a chat completion model
	// and returns the text of the first completion.
	// A blank completion is reported as an error.
	Synthesize(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AIProvider aggregates all AI services needed by the binder system.
// This provides a convenient single point of initialization for AI services.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Synthesizer returns the merge synthesis service.
	Synthesizer() Synthesizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
