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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// CheckpointName identifies the backfill's resume point in the checkpoint store.
const CheckpointName = "embedding-backfill"

// Config controls a backfill run.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// CallTimeout bounds each embedding request
	CallTimeout time.Duration

	// Model is recorded on stored embeddings
	Model string

	// Dimensions is the required vector width; zero accepts any width
	Dimensions int
}

// DefaultConfig returns the default backfill configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		CallTimeout:    20 * time.Second,
	}
}

// ConfigFromAI fills the embedding settings of the default configuration from cfg.
func ConfigFromAI(cfg *ai.Config) *Config {
	config := DefaultConfig()
	if cfg != nil {
		config.Model = cfg.EmbeddingModel
		config.Dimensions = cfg.EmbeddingDimensions
		if cfg.EmbeddingTimeout > 0 {
			config.CallTimeout = cfg.EmbeddingTimeout
		}
	}
	return config
}

// Backfiller generates embeddings for chunks that were stored without one.
// Progress is checkpointed after every batch so an interrupted run resumes
// where it stopped.
type Backfiller struct {
	repo        storage.ChatRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *ChunkIterator
	logger      *slog.Logger
}

// NewBackfiller creates a backfiller. checkpoints may be nil to disable resuming.
func NewBackfiller(
	repo storage.ChatRepository,
	checkpoints storage.CheckpointRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Backfiller, error) {
	if repo == nil {
		return nil, ErrChatRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	logger := slog.Default().With("component", "backfill")

	return &Backfiller{
		repo:        repo,
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(repo, embedder, config, logger),
		iterator:    NewChunkIterator(repo, config.BatchSize),
		logger:      logger,
	}, nil
}

// Run embeds every chunk that lacks an embedding and returns what it did.
func (b *Backfiller) Run(ctx context.Context) (*Stats, error) {
	cursor, err := b.loadCursor(ctx)
	if err != nil {
		return nil, err
	}

	total, err := b.iterator.Count(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", storage.DomainError(err))
	}

	stats := &Stats{}
	if total == 0 {
		fmt.Fprintf(b.progress, "No chunks without embeddings (0 chunks)\n")
		return stats, b.clearCursor(ctx)
	}

	if cursor != "" {
		fmt.Fprintf(b.progress, "Resuming embedding backfill of %d chunks (batch size: %d)\n", total, b.config.BatchSize)
	} else {
		fmt.Fprintf(b.progress, "Starting embedding backfill of %d chunks (batch size: %d)\n", total, b.config.BatchSize)
	}

	tracker := NewProgressTracker(b.progress, total, b.config.ReportInterval, "chunks")
	tracker.Start()

	err = b.iterator.ForEach(ctx, cursor, func(batch []*core.Chunk, next string) error {
		batchStats, err := b.processor.Process(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		stats.add(batchStats)
		tracker.Increment(len(batch))

		if next != "" {
			return b.saveCursor(ctx, next)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(b.progress)
		b.logger.Error("backfill stopped", "embedded", stats.Embedded, "err", err)
		return stats, err
	}

	tracker.Finish()
	if err := b.clearCursor(ctx); err != nil {
		return stats, err
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(b.progress, "Backfill complete. Embedded %d of %d chunks in %v (%d rejected, %d skipped, %d failed)\n",
		stats.Embedded, total, elapsed.Round(time.Millisecond), stats.Rejected, stats.Skipped, stats.Failed)

	return stats, nil
}

func (b *Backfiller) loadCursor(ctx context.Context) (string, error) {
	if b.checkpoints == nil {
		return "", nil
	}
	checkpoint, err := b.checkpoints.LoadCheckpoint(ctx, CheckpointName)
	if err != nil {
		return "", fmt.Errorf("failed to load checkpoint: %w", storage.DomainError(err))
	}
	if checkpoint == nil {
		return "", nil
	}
	b.logger.Info("resuming from checkpoint", "updated_at", checkpoint.UpdatedAt)
	return checkpoint.Cursor, nil
}

func (b *Backfiller) saveCursor(ctx context.Context, cursor string) error {
	if b.checkpoints == nil {
		return nil
	}
	err := b.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Name: CheckpointName, Cursor: cursor})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", storage.DomainError(err))
	}
	return nil
}

func (b *Backfiller) clearCursor(ctx context.Context) error {
	if b.checkpoints == nil {
		return nil
	}
	if err := b.checkpoints.DeleteCheckpoint(ctx, CheckpointName); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", storage.DomainError(err))
	}
	return nil
}
