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

package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// Stats counts what a backfill did.
type Stats struct {
	// Embedded chunks received a new embedding.
	Embedded int `json:"embedded"`
	// Rejected chunks got a zero-magnitude or wrongly sized vector.
	Rejected int `json:"rejected"`
	// Skipped chunks were embedded by someone else in the meantime.
	Skipped int `json:"skipped"`
	// Failed chunks could not be stored.
	Failed int `json:"failed"`
}

func (s *Stats) add(other Stats) {
	s.Embedded += other.Embedded
	s.Rejected += other.Rejected
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Total returns the number of chunks handled.
func (s Stats) Total() int {
	return s.Embedded + s.Rejected + s.Skipped + s.Failed
}

// BatchProcessor embeds a batch of chunks and stores the results.
type BatchProcessor struct {
	repo           storage.ChatRepository
	embedder       ai.Embedder
	model          string
	dimensions     int
	callTimeout    time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a processor from config.
func NewBatchProcessor(repo storage.ChatRepository, embedder ai.Embedder, config *Config, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		model:          config.Model,
		dimensions:     config.Dimensions,
		callTimeout:    config.CallTimeout,
		maxRetries:     config.MaxRetries,
		retryBaseDelay: config.RetryDelay,
		logger:         logger,
	}
}

// Process embeds chunks in one request, retrying with backoff, then stores
// each usable vector. Existing embeddings are left alone. Only a failure of
// the embedding service is returned as an error.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) (Stats, error) {
	var stats Stats
	if len(chunks) == 0 {
		return stats, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, bp.callTimeout)
		defer cancel()
		var err error
		vectors, err = bp.embedder.EmbedTexts(callCtx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if !errors.Is(err, core.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
		}
		return stats, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(vectors) != len(chunks) {
		return stats, fmt.Errorf("%w: expected %d vectors, got %d", core.ErrEmbeddingUnavailable, len(chunks), len(vectors))
	}

	for i, chunk := range chunks {
		if err := ai.CheckVector(vectors[i], bp.dimensions); err != nil {
			bp.logger.Warn("embedding rejected", "chunk_id", chunk.ID, "err", err)
			stats.Rejected++
			continue
		}

		err := bp.repo.AddEmbedding(ctx, &core.Embedding{
			ChunkID:       chunk.ID,
			Vector:        vectors[i],
			Model:         bp.model,
			ContentDigest: core.DigestFromContent(chunk.Content),
		})
		switch {
		case err == nil:
			stats.Embedded++
		case errors.Is(err, storage.ErrDuplicateKey), errors.Is(err, storage.ErrNotFound):
			// embedded concurrently, or the chat was deleted
			stats.Skipped++
		default:
			bp.logger.Error("failed to store embedding", "chunk_id", chunk.ID, "err", err)
			stats.Failed++
		}
	}

	return stats, nil
}
