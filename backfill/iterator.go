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

	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// DefaultBatchSize is the number of chunks fetched per batch.
const DefaultBatchSize = 100

// ChunkIterator pages through chunks that have no embedding.
type ChunkIterator struct {
	repo      storage.ChatRepository
	batchSize int
}

// NewChunkIterator creates an iterator. A non-positive batchSize uses DefaultBatchSize.
func NewChunkIterator(repo storage.ChatRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of unembedded chunks after cursor, in key
// order. An empty cursor starts from the beginning. fn receives the cursor to
// resume from once the batch is handled; it is empty for the final batch.
func (it *ChunkIterator) ForEach(ctx context.Context, cursor string, fn func(batch []*core.Chunk, next string) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunks, next, err := it.repo.ChunksMissingEmbeddings(ctx, cursor, it.batchSize)
		if err != nil {
			return err
		}

		if len(chunks) > 0 {
			if err := fn(chunks, next); err != nil {
				return err
			}
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
}

// Count returns how many chunks after cursor have no embedding.
func (it *ChunkIterator) Count(ctx context.Context, cursor string) (int, error) {
	total := 0
	err := it.ForEach(ctx, cursor, func(batch []*core.Chunk, _ string) error {
		total += len(batch)
		return nil
	})
	return total, err
}
