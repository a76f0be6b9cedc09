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

package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// embeddingProcessor makes one best-effort embedding attempt for a stored chunk.
type embeddingProcessor struct {
	chatRepository storage.ChatRepository
	embedder       ai.Embedder
	timeout        time.Duration
	model          string
	dimensions     int
	logger         *slog.Logger
}

func newEmbeddingProcessor(chatRepository storage.ChatRepository, embedder ai.Embedder, logger *slog.Logger) (*embeddingProcessor, error) {
	if chatRepository == nil {
		return nil, ErrChatRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		chatRepository: chatRepository,
		embedder:       embedder,
		logger:         logger.With("processor", "embeddings"),
	}, nil
}

// process generates and stores the embedding for chunk. It never fails; the
// returned outcome carries the error, if any.
func (ep *embeddingProcessor) process(ctx context.Context, position int, chunk *core.Chunk) ChunkOutcome {
	outcome := ChunkOutcome{Position: position, Chunk: chunk, Kind: OutcomeEmbedded}
	log := ep.logger.With("chat_id", chunk.ChatID, "chunk_index", chunk.Index)

	callCtx, cancel := context.WithTimeout(ctx, ep.timeout)
	vector, err := ep.embedder.EmbedText(callCtx, chunk.Content)
	cancel()
	if err != nil {
		log.Warn("embedding unavailable, chunk stored without embedding", "err", err)
		outcome.Kind, outcome.Err = OutcomeEmbeddingUnavailable, err
		return outcome
	}

	if err := ai.CheckVector(vector, ep.dimensions); err != nil {
		log.Warn("embedding rejected", "err", err)
		outcome.Kind, outcome.Err = OutcomeEmbeddingRejected, err
		return outcome
	}

	err = ep.chatRepository.AddEmbedding(ctx, &core.Embedding{
		ChunkID:       chunk.ID,
		Vector:        vector,
		Model:         ep.model,
		ContentDigest: core.DigestFromContent(chunk.Content),
	})
	if err != nil {
		log.Error("failed to store embedding", "err", err)
		outcome.Kind, outcome.Err = OutcomeEmbeddingNotStored, err
		return outcome
	}

	log.Debug("chunk embedded", "dimensions", len(vector))
	return outcome
}
